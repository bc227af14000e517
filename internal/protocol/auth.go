package protocol

import (
	"crypto/md5"
	"encoding/hex"
)

// LoginDigest derives the token the server expects in a password
// frame: the lowercase hex MD5 of the challenge salt followed by the
// password bytes. The digest, not the password, crosses the wire.
func LoginDigest(salt []byte, password string) string {
	h := md5.New()
	h.Write(salt)
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

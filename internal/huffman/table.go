package huffman

// FrequencyTable assigns a relative weight to every byte value. The
// code tree is derived from these weights alone, so two peers holding
// the same table always agree on the bitstream.
type FrequencyTable [256]uint32

// DefaultTable is the dictionary shared with the game server, expressed
// as fixed-point symbol weights (the historical float measurements
// scaled by 1e8). It must match the server's table exactly; changing
// any entry breaks every datagram on the wire.
var DefaultTable = FrequencyTable{
	14473691, 1147017, 167522, 3831121, 356579, 3811315, 178254, 199644,
	183511, 225716, 211240, 308829, 172852, 186608, 215921, 168891,
	168603, 218586, 284414, 161833, 196043, 151029, 173932, 218370,
	934121, 220185, 278996, 180250, 271499, 194044, 161977, 167306,
	523786, 164515, 162549, 277711, 157836, 149874, 299381, 200413,
	158894, 208808, 263224, 203755, 196314, 168515, 229380, 310117,
	324260, 203802, 280092, 258094, 302860, 311109, 243317, 317177,
	309804, 277874, 192282, 218146, 159609, 242462, 305542, 284415,
	412870, 248123, 264303, 238472, 188368, 210015, 322005, 193888,
	236678, 263056, 207185, 167677, 206850, 150812, 217679, 177006,
	334892, 148271, 148886, 228555, 321242, 242184, 188476, 162576,
	161242, 333275, 293716, 338976, 239842, 165298, 190236, 328925,
	381554, 154203, 169932, 246897, 323270, 163895, 262864, 268676,
	176361, 190271, 320778, 264178, 160722, 288037, 280343, 221940,
	308466, 279214, 253765, 192533, 282907, 270839, 148397, 159969,
	269339, 191491, 214490, 272358, 282328, 219240, 289096, 197574,
	676249, 268988, 166114, 191542, 285590, 149871, 195017, 259813,
	290250, 298724, 282335, 261603, 168398, 301821, 332386, 315942,
	275416, 169108, 321404, 187629, 258345, 318802, 307357, 189410,
	249992, 155932, 279746, 164440, 172573, 295075, 264026, 163610,
	292492, 263993, 302198, 215478, 280933, 331089, 147436, 278447,
	152736, 148375, 271455, 305062, 262741, 328987, 214189, 310932,
	403912, 294671, 290324, 219911, 183840, 222599, 308410, 203781,
	170747, 176742, 202415, 231069, 311378, 264903, 179588, 293249,
	253515, 236482, 235983, 322945, 201542, 145354, 280721, 241727,
	308254, 194015, 241073, 299267, 171126, 228352, 235898, 311250,
	171613, 339228, 177213, 238263, 326014, 234698, 145330, 232301,
	198684, 324173, 229940, 307106, 219330, 236343, 327535, 284031,
	229138, 156369, 315197, 227685, 220047, 339351, 189410, 281569,
	166654, 190653, 177791, 250319, 338619, 254067, 176358, 175134,
	227931, 158081, 293329, 271246, 239592, 291562, 333319, 261966,
	311621, 272664, 154328, 269807, 157277, 326213, 281121, 652304,
}

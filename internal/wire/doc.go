// Package wire implements the bit-exact layer serialization format of
// spec.md §6: a header record (voxel_size, voxels_per_side, action
// tag) followed by block records (BlockIndex, origin, S^3 voxel
// records). Encode/Decode mirror the teacher's
// internal/lidar/recorder.Recorder/Replayer field-by-field
// binary.Write/binary.Read style (little-endian, one call per header
// field and one per fixed-size block header or voxel payload, every
// call's error checked) rather than gob or a length-prefixed
// blob, since the format must round-trip byte-for-byte across
// implementations, not just across this module's own versions.
package wire

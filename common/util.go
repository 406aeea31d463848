package common

// BytesCopy returns a freshly allocated copy of src, so a caller can zero the
// original without disturbing anything that retained the copy. hash256.Bytes
// and rawkey.RawKey.Bytes both delegate here rather than each rolling their
// own copy loop.
func BytesCopy(src []byte) []byte {
	dst := make([]byte, len(src))
	copy(dst, src)

	return dst
}

package toolruntime

import (
	"bytes"
	"io"
)

func rawReader(raw []byte) io.Reader {
	return bytes.NewReader(raw)
}

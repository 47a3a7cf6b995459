package sandbox

import (
	"errors"
	"io"
	"os"
)

// binarySampleSize is how much of the file the verdict is based on.
// The read is bounded regardless of file size.
const binarySampleSize = 512

// nonPrintableRatio is the fraction of non-printable bytes in the sample
// above which a file is treated as binary.
const nonPrintableRatio = 0.30

// IsBinary samples at most the first 512 bytes of the file and reports
// whether they look like binary content: any NUL byte, or more than 30%
// of the sample below 0x20 excluding tab, newline and carriage return.
// An empty file is text.
func IsBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, binarySampleSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	sample := buf[:n]

	var zeroBytes, nonPrintable int
	for _, b := range sample {
		if b == 0 {
			zeroBytes++
		}
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}

	if zeroBytes > 0 {
		return true, nil
	}
	return float64(nonPrintable) > float64(n)*nonPrintableRatio, nil
}

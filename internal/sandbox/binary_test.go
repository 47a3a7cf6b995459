package sandbox

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsBinary_PlainText(t *testing.T) {
	path := writeTemp(t, "a.go", []byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"))

	binary, err := IsBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if binary {
		t.Error("plain source should not be binary")
	}
}

func TestIsBinary_EmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.go", nil)

	binary, err := IsBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if binary {
		t.Error("empty file should not be binary")
	}
}

func TestIsBinary_SingleZeroByte(t *testing.T) {
	data := append([]byte("looks like text "), 0x00)
	data = append(data, []byte(" more text")...)
	path := writeTemp(t, "sneaky.go", data)

	binary, err := IsBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if !binary {
		t.Error("one zero byte in the sample must classify as binary")
	}
}

func TestIsBinary_NonPrintableRatio(t *testing.T) {
	// 40 control bytes in a 100 byte sample: above the 30% threshold.
	data := append(bytes.Repeat([]byte{0x01}, 40), bytes.Repeat([]byte("a"), 60)...)
	path := writeTemp(t, "noisy.go", data)

	binary, err := IsBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if !binary {
		t.Error("40% non-printable should classify as binary")
	}

	// 20 control bytes in 100: below the threshold.
	data = append(bytes.Repeat([]byte{0x01}, 20), bytes.Repeat([]byte("a"), 80)...)
	path = writeTemp(t, "mild.go", data)

	binary, err = IsBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if binary {
		t.Error("20% non-printable should classify as text")
	}
}

func TestIsBinary_TabsAndNewlinesAreText(t *testing.T) {
	data := bytes.Repeat([]byte("\t\r\n"), 100)
	path := writeTemp(t, "whitespace.go", data)

	binary, err := IsBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if binary {
		t.Error("tab/newline/CR never count as non-printable")
	}
}

func TestIsBinary_OnlySamplesPrefix(t *testing.T) {
	// Clean 512-byte prefix followed by a megabyte of zeros. The verdict
	// must come from the prefix alone.
	data := append(bytes.Repeat([]byte("x"), 512), bytes.Repeat([]byte{0x00}, 1<<20)...)
	path := writeTemp(t, "trailer.go", data)

	binary, err := IsBinary(path)
	if err != nil {
		t.Fatal(err)
	}
	if binary {
		t.Error("bytes past the 512-byte sample must not affect the verdict")
	}
}

package unsea

import (
	"debug/elf"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unsea/unsea/seablob"
)

// sampleBlob is the reference payload embedded into the test executables of
// every container format.
func sampleBlob() *seablob.Blob {
	return &seablob.Blob{
		Flags:    seablob.FlagDisableExperimentalSEAWarning,
		CodePath: "/home/dev/app/main.js",
		Source:   "console.log(1)",
		Assets: []seablob.Asset{
			{Name: "config.json", Data: []byte(`{"a":1}`)},
		},
	}
}

func sampleBlobBytes(t *testing.T) []byte {
	t.Helper()
	return seablob.Encode(sampleBlob())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format Format
	}{
		{"ELF", []byte{0x7f, 'E', 'L', 'F', 2, 1}, FormatELF},
		{"PE", []byte{'M', 'Z', 0x90, 0x00}, FormatPE},
		{"Mach-O 64-bit LE", []byte{0xcf, 0xfa, 0xed, 0xfe}, FormatMachO},
		{"Mach-O 32-bit LE", []byte{0xce, 0xfa, 0xed, 0xfe}, FormatMachO},
		{"Mach-O 64-bit BE", []byte{0xfe, 0xed, 0xfa, 0xcf}, FormatMachO},
		{"Mach-O fat", []byte{0xca, 0xfe, 0xba, 0xbe}, FormatMachO},
		{"Mach-O fat 64", []byte{0xca, 0xfe, 0xba, 0xbf}, FormatMachO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := DetectFormat(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
		})
	}

	t.Run("unrecognized", func(t *testing.T) {
		format, err := DetectFormat([]byte{0x00, 0x01, 0x02, 0x03})
		assert.ErrorIs(t, err, ErrMalformedContainer)
		assert.Equal(t, FormatUnknown, format)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := DetectFormat([]byte{'M', 'Z'})
		assert.ErrorIs(t, err, ErrMalformedContainer)
	})
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "ELF", FormatELF.String())
	assert.Equal(t, "PE", FormatPE.String())
	assert.Equal(t, "Mach-O", FormatMachO.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
	assert.Equal(t, "unknown", Format(42).String())
}

func TestExtract(t *testing.T) {
	want := sampleBlob()
	want.CodeCache = []byte{0x13, 0x37}
	exe := buildELF(t, elfSpec{sections: []elfSectionSpec{
		{name: ".text", typ: elf.SHT_PROGBITS, body: []byte("machine code")},
		{name: elfSectionName, typ: elf.SHT_NOTE, body: seablob.Encode(want)},
	}})

	blob, err := Extract(exe)
	require.NoError(t, err)
	assert.Equal(t, want.CodePath, blob.CodePath)
	assert.Equal(t, want.Source, blob.Source)
	assert.Equal(t, want.CodeCache, blob.CodeCache)
	assert.Equal(t, want.Assets, blob.Assets)
	assert.True(t, blob.Flags.Has(seablob.FlagDisableExperimentalSEAWarning))
}

func TestExtract_BlobErrors(t *testing.T) {
	t.Run("wrong blob magic", func(t *testing.T) {
		exe := buildELF(t, elfSpec{sections: []elfSectionSpec{
			{name: elfSectionName, typ: elf.SHT_NOTE, body: []byte("this is not a blob")},
		}})
		_, err := Extract(exe)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("truncated blob", func(t *testing.T) {
		exe := buildELF(t, elfSpec{sections: []elfSectionSpec{
			{name: elfSectionName, typ: elf.SHT_NOTE, body: sampleBlobBytes(t)[:10]},
		}})
		_, err := Extract(exe)
		assert.ErrorIs(t, err, ErrTruncatedBlob)
	})
}

func TestExtract_UnknownFormat(t *testing.T) {
	_, err := Extract([]byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	assert.ErrorIs(t, err, ErrMalformedContainer)
}

func TestExtractFile(t *testing.T) {
	exe := buildELF(t, elfSpec{sections: []elfSectionSpec{
		{name: elfSectionName, typ: elf.SHT_NOTE, body: sampleBlobBytes(t)},
	}})
	path := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.WriteFile(path, exe, 0o755))

	blob, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleBlob().Source, blob.Source)
}

func TestExtractFile_NoSuchFile(t *testing.T) {
	blob, err := ExtractFile("./:this file does not exist!")
	assert.Error(t, err)
	var pathErr *os.PathError
	assert.True(t, errors.As(err, &pathErr))
	assert.Nil(t, blob)
}

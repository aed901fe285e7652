package converter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/ragerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertReaderOneDocumentPerRow(t *testing.T) {
	input := "product_title,rating,review\n" +
		"BoAt Rockerz 255,5,\"Great bass, decent battery\"\n" +
		"Philips Blender,4,Loud but strong\n" +
		"Philips Blender,2,\n"

	docs, err := ConvertReader(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "Great bass, decent battery", docs[0].Content)
	assert.Equal(t, "BoAt Rockerz 255", docs[0].ProductName())
	assert.Equal(t, "Loud but strong", docs[1].Content)
	assert.Equal(t, "Philips Blender", docs[1].ProductName())

	// empty review is passed through
	assert.Equal(t, "", docs[2].Content)
	for _, d := range docs {
		assert.Len(t, d.Metadata, 1)
		_, ok := d.Metadata[document.MetadataProductName]
		assert.True(t, ok)
	}
}

func TestConvertReaderDataFormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"missing review column", "product_title,rating\nA,5\n"},
		{"missing both columns", "a,b\n1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertReader(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ragerr.ErrDataFormat), "got %v", err)
		})
	}
}

func TestConvertReaderToleratesMessyRows(t *testing.T) {
	input := "product_title,review\n" +
		"Philips Blender,the \"best\" blender I own\n" +
		"Prestige Kettle\n" +
		"BoAt Rockerz 255,punchy bass,extra,cells\n"

	docs, err := ConvertReader(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, `the "best" blender I own`, docs[0].Content)
	assert.Equal(t, "Philips Blender", docs[0].ProductName())

	// a row cut short before the review column reads as an empty review
	assert.Equal(t, "", docs[1].Content)
	assert.Equal(t, "Prestige Kettle", docs[1].ProductName())

	assert.Equal(t, "punchy bass", docs[2].Content)
}

func TestConvertHeaderWithBOMAndSpaces(t *testing.T) {
	input := "\ufeffproduct_title , review\nKettle,Boils fast\n"

	docs, err := ConvertReader(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Kettle", docs[0].ProductName())
}

func TestConvertFileAndGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("product_title,review\nA,first\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.csv"), []byte("product_title,review\nB,second\nB,third\n"), 0o644))

	docs, err := Convert(filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = ConvertGlob(filepath.Join(dir, "**", "*.csv"))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "first", docs[0].Content)
	assert.Equal(t, "third", docs[2].Content)

	_, err = ConvertGlob(filepath.Join(dir, "*.tsv"))
	assert.True(t, errors.Is(err, ragerr.ErrDataFormat))

	_, err = Convert(filepath.Join(dir, "missing.csv"))
	assert.True(t, errors.Is(err, ragerr.ErrDataFormat))
}

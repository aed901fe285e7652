package converter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"review-rag-be/pkg/rag/document"
	"review-rag-be/pkg/rag/ragerr"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	ColumnProductTitle = "product_title"
	ColumnReview       = "review"
)

// ReviewRecord is one source row before conversion.
type ReviewRecord struct {
	ProductTitle string
	ReviewText   string
}

func (r ReviewRecord) Document() document.Document {
	return document.New(r.ReviewText, r.ProductTitle)
}

// Convert reads a review CSV and returns one document per data row, in file order.
func Convert(path string) ([]document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ragerr.New(ragerr.KindDataFormat, "converter.Convert", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	docs, err := ConvertReader(f)
	if err != nil {
		return nil, ragerr.Classify(ragerr.KindDataFormat, "converter.Convert", fmt.Errorf("%s: %w", path, err))
	}
	return docs, nil
}

// ConvertGlob converts every CSV matching pattern (doublestar syntax) in lexical path order.
func ConvertGlob(pattern string) ([]document.Document, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, ragerr.New(ragerr.KindDataFormat, "converter.ConvertGlob", fmt.Errorf("bad pattern %q: %w", pattern, err))
	}
	if len(matches) == 0 {
		return nil, ragerr.Errorf(ragerr.KindDataFormat, "converter.ConvertGlob", "no files match %q", pattern)
	}
	sort.Strings(matches)

	var docs []document.Document
	for _, path := range matches {
		fileDocs, err := Convert(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// ConvertReader parses CSV from r. Columns other than product_title and review are ignored.
func ConvertReader(r io.Reader) ([]document.Document, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}

	docs := make([]document.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, rec.Document())
	}
	return docs, nil
}

// ReadRecords parses the header, locates the two required columns and returns every row.
// Empty review text is passed through unchanged.
func ReadRecords(r io.Reader) ([]ReviewRecord, error) {
	reader := csv.NewReader(r)
	// review text routinely carries bare quotes; ragged rows keep what they have
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ragerr.Errorf(ragerr.KindDataFormat, "converter.ReadRecords", "empty input: missing header")
		}
		return nil, ragerr.New(ragerr.KindDataFormat, "converter.ReadRecords", err)
	}

	titleIdx, reviewIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case ColumnProductTitle:
			titleIdx = i
		case ColumnReview:
			reviewIdx = i
		}
	}

	var missing []string
	if titleIdx < 0 {
		missing = append(missing, ColumnProductTitle)
	}
	if reviewIdx < 0 {
		missing = append(missing, ColumnReview)
	}
	if len(missing) > 0 {
		return nil, ragerr.Errorf(ragerr.KindDataFormat, "converter.ReadRecords", "missing required columns: %s", strings.Join(missing, ", "))
	}

	var records []ReviewRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ragerr.New(ragerr.KindDataFormat, "converter.ReadRecords", err)
		}
		records = append(records, ReviewRecord{
			ProductTitle: cell(row, titleIdx),
			ReviewText:   cell(row, reviewIdx),
		})
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// extractDocx pulls visible text from a Word document. Text lives in w:t
// elements inside word/document.xml; paragraphs become newlines.
func extractDocx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", eris.Wrap(err, "extract: open docx")
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrap(err, "extract: open document.xml")
		}
		defer rc.Close()
		return xmlText(rc, "t", "p")
	}
	return "", eris.New("extract: docx has no word/document.xml")
}

// extractPptx pulls visible text from all slides, in slide order. Slide text
// lives in a:t elements inside ppt/slides/slideN.xml.
func extractPptx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", eris.Wrap(err, "extract: open pptx")
	}

	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	if len(slides) == 0 {
		return "", eris.New("extract: pptx has no slides")
	}
	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i]) < slideNumber(slides[j])
	})

	var b strings.Builder
	for _, name := range slides {
		for _, f := range zr.File {
			if f.Name != name {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return "", eris.Wrap(err, "extract: open slide")
			}
			text, err := xmlText(rc, "t", "p")
			rc.Close()
			if err != nil {
				return "", err
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(text)
		}
	}
	return b.String(), nil
}

func slideNumber(name string) int {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	n := 0
	for _, r := range digits {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// extractXlsx renders all sheets as tab-separated rows.
func extractXlsx(content []byte) (string, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return "", eris.Wrap(err, "extract: open xlsx")
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sheet.Name)
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for i, cell := range row.Cells {
				cells[i] = cell.String()
			}
			b.WriteString("\n")
			b.WriteString(strings.Join(cells, "\t"))
		}
	}
	return b.String(), nil
}

// xmlText collects character data inside elements with the given local name,
// inserting a newline at the end of each paragraph element.
func xmlText(r io.Reader, textElem, paraElem string) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "extract: parse xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				inText++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textElem:
				if inText > 0 {
					inText--
				}
			case paraElem:
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText > 0 {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

package ocr

import (
	"strconv"
	"strings"

	"github.com/JaimeStill/docintel/internal/acquisition"
)

const wordLevel = "5"

// tsv column indexes in tesseract's TSV output.
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

type lineKey struct {
	page, block, par, line int
}

// recognition accumulates line blocks and word confidences across pages.
type recognition struct {
	blocks  []acquisition.Block
	confSum float64
	words   int
	pages   int
}

func (r *recognition) confidence() float64 {
	if r.words == 0 {
		return 0
	}
	return r.confSum / float64(r.words) / 100
}

// parseTSV groups word rows into line blocks. page overrides the TSV page
// number when positive; a rasterized PDF page is always page 1 to tesseract.
func (r *recognition) parseTSV(out []byte, page int) {
	type line struct {
		key   lineKey
		words []string
		sum   float64
		n     int
	}

	var lines []*line
	index := map[lineKey]*line{}

	for i, row := range strings.Split(string(out), "\n") {
		if i == 0 || row == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(cols) < tsvColumns || cols[colLevel] != wordLevel {
			continue
		}

		text := strings.TrimSpace(cols[colText])
		conf, err := strconv.ParseFloat(cols[colConf], 64)
		if text == "" || err != nil || conf < 0 {
			continue
		}

		key := lineKey{
			page:  atoi(cols[colPage]),
			block: atoi(cols[colBlock]),
			par:   atoi(cols[colPar]),
			line:  atoi(cols[colLine]),
		}
		if page > 0 {
			key.page = page
		}
		r.pages = max(r.pages, key.page)

		l, ok := index[key]
		if !ok {
			l = &line{key: key}
			index[key] = l
			lines = append(lines, l)
		}
		l.words = append(l.words, text)
		l.sum += conf
		l.n++

		r.confSum += conf
		r.words++
	}

	for _, l := range lines {
		r.blocks = append(r.blocks, acquisition.Block{
			Page:       l.key.page,
			Text:       strings.Join(l.words, " "),
			Confidence: l.sum / float64(l.n) / 100,
		})
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

package parser

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/tango/internal/domain"
)

type state int

const (
	seeking state = iota
	readingWord
	readingReading
	readingMeaning
	readingExample
)

var prefixes = []struct {
	prefix string
	state  state
}{
	{"W:", readingWord},
	{"R:", readingReading},
	{"M:", readingMeaning},
	{"E:", readingExample},
}

const separator = "---"

// IsDeckFile reports whether name has an extension the parser understands.
func IsDeckFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".xlsx":
		return true
	}
	return false
}

// ParseDeck picks the markdown or spreadsheet parser by file extension.
func ParseDeck(name string, r io.Reader) ([]domain.Card, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return ParseXLSX(r, DefaultXLSXOptions())
	}
	return Parse(r)
}

// ParseFile reads a deck file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseDeck(path, file)
}

// Parse reads a markdown deck and extracts all cards. A card opens at a
// "W:" line and may carry "R:", "M:" and "E:" fields; "---" closes it.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var current domain.Card
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), " \t\n")
		switch currentState {
		case readingWord:
			current.Word = content
		case readingReading:
			current.Reading = content
		case readingMeaning:
			current.Meaning = content
		case readingExample:
			current.Example = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Word != "" {
			cards = append(cards, current)
		}
		current = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishCard()
			continue
		}

		next, rest, ok := matchPrefix(line)
		if !ok {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == readingWord && currentState != seeking {
			finishCard()
		}
		flushBlock()
		currentState = next
		block = append(block, rest)
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func matchPrefix(line string) (state, string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.state, strings.TrimPrefix(line[len(p.prefix):], " "), true
		}
	}
	return seeking, "", false
}

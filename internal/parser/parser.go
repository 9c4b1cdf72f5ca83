// Package parser turns a command line into jobs.
//
// The grammar is deliberately small: words separated by blanks, single and
// double quotes, backslash escapes, pipelines joined by '|', a trailing '&'
// for background jobs and ';' between jobs. There is no expansion.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nixpig/dsh/internal/jobcontrol"
)

var ErrSyntax = errors.New("syntax error")

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenPipe
	tokenAmp
	tokenSemi
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse splits line into jobs in the order they appear. A blank line yields
// no jobs and no error.
func Parse(line string) ([]*jobcontrol.Job, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}

	var (
		jobs     []*jobcontrol.Job
		stages   [][]string
		argv     []string
		jobStart = -1
	)

	endJob := func(end int, background bool, op string) error {
		if len(argv) == 0 {
			if len(stages) == 0 && !background {
				return nil
			}

			return fmt.Errorf("%w near unexpected token `%s'", ErrSyntax, op)
		}

		j, err := jobcontrol.NewJob(
			line[jobStart:end],
			background,
			append(stages, argv)...,
		)
		if err != nil {
			return err
		}

		jobs = append(jobs, j)
		stages, argv, jobStart = nil, nil, -1

		return nil
	}

	for _, t := range tokens {
		switch t.kind {
		case tokenWord:
			if jobStart < 0 {
				jobStart = t.pos
			}

			argv = append(argv, t.text)
		case tokenPipe:
			if len(argv) == 0 {
				return nil, fmt.Errorf("%w near unexpected token `|'", ErrSyntax)
			}

			stages = append(stages, argv)
			argv = nil
		case tokenAmp:
			if err := endJob(t.pos, true, "&"); err != nil {
				return nil, err
			}
		case tokenSemi:
			if err := endJob(t.pos, false, ";"); err != nil {
				return nil, err
			}
		}
	}

	if err := endJob(len(line), false, "newline"); err != nil {
		return nil, err
	}

	return jobs, nil
}

func tokenize(line string) ([]token, error) {
	var (
		tokens []token
		word   strings.Builder
		inWord bool
		start  int
	)

	flush := func() {
		if inWord {
			tokens = append(tokens, token{kind: tokenWord, text: word.String(), pos: start})
			word.Reset()
			inWord = false
		}
	}

	begin := func(i int) {
		if !inWord {
			inWord = true
			start = i
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch c {
		case ' ', '\t', '\n', '\r':
			flush()
		case '|':
			flush()
			tokens = append(tokens, token{kind: tokenPipe, pos: i})
		case '&':
			flush()
			tokens = append(tokens, token{kind: tokenAmp, pos: i})
		case ';':
			flush()
			tokens = append(tokens, token{kind: tokenSemi, pos: i})
		case '\'', '"':
			begin(i)

			end := strings.IndexByte(line[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
			}

			word.WriteString(line[i+1 : i+1+end])
			i += end + 1
		case '\\':
			begin(i)

			if i+1 < len(line) {
				word.WriteByte(line[i+1])
				i++
			}
		default:
			begin(i)
			word.WriteByte(c)
		}
	}

	flush()

	return tokens, nil
}

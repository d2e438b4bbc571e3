package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type (
	Line struct {
		Label         string
		Term          string
		Pronunciation string
		Note          string
	}

	ParsingError struct {
		InvalidLines []int
	}
)

func (e *ParsingError) Error() string {
	return fmt.Sprintf("parsing error: invalidLines=%v", e.InvalidLines)
}

// Parse reads CSV records of (label,term[,pronunciation[,note]]) and streams
// them to out. Blank lines are skipped; malformed records are collected into
// a ParsingError after the valid ones have been sent.
func Parse(ctx context.Context, in io.ReadCloser, out chan<- Line) error {
	defer close(out)
	defer in.Close()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1 // validated per record below

	invalidLines := make([]int, 0, 10) //nolint:mnd // 10 is the expected capacity
	lineNum := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			invalidLines = append(invalidLines, lineNum)
			continue
		}

		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 2 || len(record) > 4 {
			invalidLines = append(invalidLines, lineNum)
			continue
		}

		line := Line{
			Label: strings.TrimSpace(record[0]),
			Term:  strings.TrimSpace(record[1]),
		}
		if len(record) > 2 { //nolint:mnd // optional pronunciation column
			line.Pronunciation = strings.TrimSpace(record[2])
		}
		if len(record) > 3 { //nolint:mnd // optional note column
			line.Note = strings.TrimSpace(record[3])
		}
		if line.Label == "" || line.Term == "" {
			invalidLines = append(invalidLines, lineNum)
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case out <- line: // continue
		}
	}

	if len(invalidLines) > 0 {
		return &ParsingError{InvalidLines: invalidLines}
	}

	return nil
}

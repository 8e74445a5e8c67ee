package report

import (
	"io"

	"github.com/nao1215/exitswitch/internal/rotation"
)

// Writer renders rotation and test results.
type Writer interface {
	// WriteRotation outputs the outcome of a Rotate call. err is the error
	// Rotate returned, if any.
	WriteRotation(result *rotation.Result, err error) (int, error)

	// WriteTest outputs the outcome of a proxy test.
	WriteTest(result *rotation.TestResult) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteRotation writes to every Writer and stops on the first error.
func (m *MultiWriter) WriteRotation(result *rotation.Result, rotateErr error) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRotation(result, rotateErr)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteTest writes to every Writer and stops on the first error.
func (m *MultiWriter) WriteTest(result *rotation.TestResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteTest(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

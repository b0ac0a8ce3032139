package net

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSVLogger logs training history to a CSV file.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	// Err holds the first open or write failure.
	Err error

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) fail(err error) {
	if c.Err == nil {
		c.Err = err
	}
}

func (c *CSVLogger) OnTrainBegin(n *Network) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		c.fail(fmt.Errorf("CSVLogger: failed to open file %s: %w", c.Filename, err))
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	// Header only for a fresh file
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.writer.Write([]string{"epoch", "loss", "accuracy", "time_seconds"})
		c.writer.Flush()
	}
}

func (c *CSVLogger) OnEpochEnd(epoch int, e Epoch, n *Network) {
	if c.writer == nil {
		return
	}

	elapsed := time.Since(c.start).Seconds()
	record := []string{
		strconv.Itoa(epoch),
		strconv.FormatFloat(e.Loss, 'f', 6, 64),
		strconv.FormatFloat(e.Accuracy, 'f', 4, 64),
		strconv.FormatFloat(elapsed, 'f', 2, 64),
	}

	if err := c.writer.Write(record); err != nil {
		c.fail(fmt.Errorf("CSVLogger: failed to write record: %w", err))
	}
	c.writer.Flush()
}

func (c *CSVLogger) OnTrainEnd(n *Network) {
	if c.file != nil {
		c.writer.Flush()
		if err := c.writer.Error(); err != nil {
			c.fail(err)
		}
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}

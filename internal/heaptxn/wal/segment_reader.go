package wal

import (
	"bufio"
	"io"
	"os"
)

type fileSegmentReader struct {
	segId uint64
	file  *os.File
	buf   *bufio.Reader
}

func NewFileSegmentReader(segId uint64, file *os.File) SegmentReader {
	return &fileSegmentReader{
		segId: segId,
		file:  file,
		buf:   bufio.NewReader(file),
	}
}

func (sr *fileSegmentReader) SegID() uint64 {
	return sr.segId
}

func (sr *fileSegmentReader) SeekTo(offset int64) error {
	if _, err := sr.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	sr.buf.Reset(sr.file)
	return nil
}

func (sr *fileSegmentReader) Reader() io.Reader {
	return sr.buf
}

func (sr *fileSegmentReader) Close() error {
	return sr.file.Close()
}

package transport

import (
	"bufio"
	"io"
	"os"
)

// FileStream reads/writes a KISS-framed PDU stream backed by a plain
// `.kiss` file: Send appends a frame, Recv reads the next one. Used by
// `hqfbp-pack --output FILE` and `hqfbp-unpack --input FILE` (spec.md
// §6.1, §6.3).
type FileStream struct {
	f  *os.File
	w  *bufio.Writer
	fr *FrameReader
}

// OpenFile opens path read-only (KISS frames are read with ReadFrame);
// Send on the returned stream fails with os.ErrInvalid.
func OpenFile(path string) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileStream{f: f, fr: NewFrameReader(f)}, nil
}

// CreateFile creates (truncating) path for writing KISS-framed PDUs.
func CreateFile(path string) (*FileStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileStream{f: f, w: bufio.NewWriter(f)}, nil
}

// Send writes pdu as one KISS frame. Only valid on a stream opened with
// CreateFile.
func (s *FileStream) Send(pdu []byte) error {
	if s.w == nil {
		return os.ErrInvalid
	}
	if _, err := s.w.Write(EncodeFrame(pdu)); err != nil {
		return err
	}
	return s.w.Flush()
}

// Recv reads the next unframed PDU. Only valid on a stream opened with
// OpenFile.
func (s *FileStream) Recv() ([]byte, error) {
	if s.fr == nil {
		return nil, os.ErrInvalid
	}
	pdu, err := s.fr.ReadFrame()
	if err == io.EOF {
		return nil, io.EOF
	}
	return pdu, err
}

// Close closes the underlying file, flushing any buffered writes first.
func (s *FileStream) Close() error {
	if s.w != nil {
		if err := s.w.Flush(); err != nil {
			_ = s.f.Close()
			return err
		}
	}
	return s.f.Close()
}

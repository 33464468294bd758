// Command hqfbp-unpack reads a KISS-framed PDU stream (from a file or a
// TCP connection) and writes each reassembled message to out_dir, named
// by its header's Message-Id and media type (spec.md §6.3).
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loic-fejoz/hqfbp/pkg/config"
	"github.com/loic-fejoz/hqfbp/pkg/deframer"
	"github.com/loic-fejoz/hqfbp/pkg/header"
	"github.com/loic-fejoz/hqfbp/pkg/observability"
	"github.com/loic-fejoz/hqfbp/pkg/transport"
)

type ioError struct{ err error }

func (e *ioError) Error() string { return e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Default()

	var inputPath, tcpAddr string
	var verbose bool

	root := &cobra.Command{
		Use:           "hqfbp-unpack <out_dir>",
		Short:         "Unpack an HQFBP PDU stream into files",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, cliArgs []string) error {
			logger, err := observability.SetupLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			outDir := cliArgs[0]
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return &ioError{fmt.Errorf("create out_dir: %w", err)}
			}

			var stream transport.PDUStream
			switch {
			case inputPath != "":
				stream, err = transport.OpenFile(inputPath)
			case tcpAddr != "":
				stream, err = transport.Dial(tcpAddr)
			default:
				return fmt.Errorf("either --input or --tcp is required")
			}
			if err != nil {
				return &ioError{fmt.Errorf("open input: %w", err)}
			}
			defer stream.Close()

			timeout, _ := time.ParseDuration(cfg.SessionTimeout)
			d := deframer.NewDeframer(timeout)

			for {
				pdu, err := stream.Recv()
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					return &ioError{fmt.Errorf("recv PDU: %w", err)}
				}
				d.ReceiveBytes(pdu)
				if err := drainEvents(d, outDir, verbose, logger); err != nil {
					return err
				}
			}
			d.Tick(time.Now())
			return drainEvents(d, outDir, verbose, logger)
		},
	}

	root.Flags().StringVar(&inputPath, "input", "", "read PDUs from this .kiss file")
	root.Flags().StringVar(&tcpAddr, "tcp", "", "dial this host:port and read PDUs over TCP")
	root.Flags().BoolVar(&verbose, "verbose", false, "print each header's fields as they're received")

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hqfbp-unpack:", err)
		var ioErr *ioError
		if errors.As(err, &ioErr) {
			return 2
		}
		return 1
	}
	return 0
}

func drainEvents(d *deframer.Deframer, outDir string, verbose bool, logger *zap.Logger) error {
	for {
		ev, ok := d.NextEvent()
		if !ok {
			return nil
		}
		switch e := ev.(type) {
		case deframer.AnnouncementReceived:
			if verbose {
				for _, line := range e.Header.Describe() {
					fmt.Println("announcement:", line)
				}
			}
		case deframer.MessageReceived:
			if err := writeMessage(outDir, e); err != nil {
				return &ioError{err}
			}
			logger.Info("unpacked message", zap.Int("bytes", len(e.Payload)))
			if verbose {
				for _, line := range e.Header.Describe() {
					fmt.Println("message:", line)
				}
			}
		case deframer.SessionTimedOut:
			logger.Warn("session timed out",
				zap.String("src_callsign", e.Key.SrcCallsign),
				zap.Uint64("message_id", e.Key.MessageID),
				zap.Int("received_chunks", e.ReceivedChunks))
		}
	}
}

func writeMessage(outDir string, e deframer.MessageReceived) error {
	ext := ".bin"
	if mt, ok := e.Header.MediaType(); ok {
		if known, ok := extensionFor(mt); ok {
			ext = known
		}
	}
	name := "message"
	if e.Header.MessageID != nil {
		name = fmt.Sprintf("msg-%d", *e.Header.MessageID)
	}
	return os.WriteFile(filepath.Join(outDir, name+ext), e.Payload, 0o644)
}

func extensionFor(mt header.MediaType) (string, bool) {
	switch mt.MIME() {
	case "text/plain":
		return ".txt", true
	case "application/octet-stream":
		return ".bin", true
	case "application/cbor", header.AnnouncementMIME:
		return ".cbor", true
	case "image/jpeg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	default:
		return "", false
	}
}

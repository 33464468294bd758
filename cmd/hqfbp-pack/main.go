// Command hqfbp-pack packs a file into an ordered stream of KISS-framed
// PDUs and writes them to a `.kiss` file or a TCP connection (spec.md
// §6.3).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loic-fejoz/hqfbp/pkg/codec"
	"github.com/loic-fejoz/hqfbp/pkg/config"
	"github.com/loic-fejoz/hqfbp/pkg/header"
	"github.com/loic-fejoz/hqfbp/pkg/observability"
	"github.com/loic-fejoz/hqfbp/pkg/pdu"
	"github.com/loic-fejoz/hqfbp/pkg/transport"
)

// ioError marks a failure in the transport/filesystem layer (exit code 2)
// as opposed to a configuration or encode error (exit code 1), per
// spec.md §6.3/§7's error-kind-to-exit-code mapping.
type ioError struct{ err error }

func (e *ioError) Error() string { return e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Default()

	var srcCallsign, dstCallsign, encodings, annEncodings, output, tcpAddr string
	var maxPayloadSize int
	var startMsgID uint64

	root := &cobra.Command{
		Use:           "hqfbp-pack <input> [addr] [port]",
		Short:         "Pack a file into an HQFBP PDU stream",
		Args:          cobra.RangeArgs(1, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, cliArgs []string) error {
			logger, err := observability.SetupLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			inputPath := cliArgs[0]
			target := tcpAddr
			if target == "" && len(cliArgs) == 3 {
				target = cliArgs[1] + ":" + cliArgs[2]
			}

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return &ioError{fmt.Errorf("read input: %w", err)}
			}

			enc, err := codec.ParseList(encodings)
			if err != nil {
				return fmt.Errorf("invalid --encodings: %w", err)
			}

			g := pdu.NewGenerator(srcCallsign, dstCallsign, enc, maxPayloadSize, startMsgID)
			if annEncodings != "" {
				annEnc, err := codec.ParseList(annEncodings)
				if err != nil {
					return fmt.Errorf("invalid --ann-encodings: %w", err)
				}
				g.WithAnnouncement(annEnc)
			}

			pdus, err := g.Generate(data, header.MediaType{Type: "application/octet-stream"}, true)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			var stream transport.PDUStream
			switch {
			case output != "":
				stream, err = transport.CreateFile(output)
			case target != "":
				stream, err = transport.Dial(target)
			default:
				return fmt.Errorf("either --output or --tcp (or [addr] [port]) is required")
			}
			if err != nil {
				return &ioError{fmt.Errorf("open output: %w", err)}
			}
			defer stream.Close()

			for _, p := range pdus {
				if err := stream.Send(p); err != nil {
					return &ioError{fmt.Errorf("send PDU: %w", err)}
				}
			}
			logger.Info("packed message", zap.Int("pdus", len(pdus)), zap.Int("bytes", len(data)))
			return nil
		},
	}

	root.Flags().StringVar(&srcCallsign, "src-callsign", cfg.SrcCallsign, "source callsign")
	root.Flags().StringVar(&dstCallsign, "dst-callsign", cfg.DstCallsign, "destination callsign")
	root.Flags().StringVar(&encodings, "encodings", cfg.Encodings, "content+PDU encoding list")
	root.Flags().StringVar(&annEncodings, "ann-encodings", "", "announcement encoding list (omit for no announcement)")
	root.Flags().IntVar(&maxPayloadSize, "max-payload-size", cfg.MaxPayloadSize, "chunk size cap in bytes (0 disables chunking)")
	root.Flags().Uint64Var(&startMsgID, "start-msg-id", 1, "first Message-Id to assign")
	root.Flags().StringVar(&output, "output", "", "write PDUs to this .kiss file")
	root.Flags().StringVar(&tcpAddr, "tcp", "", "dial this host:port and stream PDUs over TCP")

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hqfbp-pack:", err)
		var ioErr *ioError
		if errors.As(err, &ioErr) {
			return 2
		}
		return 1
	}
	return 0
}

// Command edhoc-responder runs a single EDHOC responder session over a
// TCP listener, for manual interop testing against an initiator
// implementation. It accepts one connection, runs the protocol to
// completion or failure, logs the outcome, and exits.
package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-edhoc/edhoc"
	"github.com/go-edhoc/edhoc/protocol"
)

var (
	listenAddr   string
	suitesFlag   []int
	skrHex       string
	pkrHex       string
	idCredRHex   string
	credRHex     string
	msg4Required bool
)

func main() {
	root := &cobra.Command{
		Use:   "edhoc-responder",
		Short: "Run one EDHOC responder session over TCP",
		RunE:  run,
	}
	root.Flags().StringVar(&listenAddr, "listen", ":8030", "address to accept one connection on")
	root.Flags().IntSliceVar(&suitesFlag, "suite", []int{0}, "supported suite labels, in preference order")
	root.Flags().StringVar(&skrHex, "skr", "", "own static/signing private key, hex-encoded")
	root.Flags().StringVar(&pkrHex, "pkr", "", "own static/signing public key, hex-encoded")
	root.Flags().StringVar(&idCredRHex, "id-cred-r", "", "own credential identifier, hex-encoded")
	root.Flags().StringVar(&credRHex, "cred-r", "", "own credential body, hex-encoded")
	root.Flags().BoolVar(&msg4Required, "msg4", false, "require the optional fourth message")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "run_id", uuid.NewString())

	skr, err := hex.DecodeString(skrHex)
	if err != nil {
		return errors.Wrap(err, "decode --skr")
	}
	pkr, err := hex.DecodeString(pkrHex)
	if err != nil {
		return errors.Wrap(err, "decode --pkr")
	}
	idCredR, err := hex.DecodeString(idCredRHex)
	if err != nil {
		return errors.Wrap(err, "decode --id-cred-r")
	}
	credR, err := hex.DecodeString(credRHex)
	if err != nil {
		return errors.Wrap(err, "decode --cred-r")
	}

	suites := make([]protocol.SuiteLabel, len(suitesFlag))
	for i, s := range suitesFlag {
		suites[i] = protocol.SuiteLabel(s)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer ln.Close()
	level.Info(logger).Log("msg", "listening", "addr", listenAddr)

	conn, err := ln.Accept()
	if err != nil {
		return errors.Wrap(err, "accept")
	}
	defer conn.Close()
	level.Info(logger).Log("msg", "accepted", "remote", conn.RemoteAddr())

	ctx := &edhoc.ResponderContext{
		SupportedSuites: suites,
		CR:              protocol.NewConnInt(1),
		SKR:             skr,
		PKR:             pkr,
		IDCredR:         idCredR,
		CredR:           credR,
		MSG4Required:    msg4Required,
	}

	// No peer credential store is wired to this demo binary; a real
	// deployment supplies its trust anchors here.
	var peers []edhoc.PeerCredential

	result, err := edhoc.Run(ctx, peers, edhoc.NetTransport{Conn: conn}, logger)
	if err != nil {
		level.Error(logger).Log("msg", "responder run failed", "err", err, "code", protocol.CodeOf(err))
		return err
	}

	level.Info(logger).Log("msg", "responder run complete",
		"th4", hex.EncodeToString(result.TH4),
		"prk_4x3m", hex.EncodeToString(result.PRK4x3m))
	return nil
}

// Copyright 2025 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/canonical/go-tpm2"
	"github.com/canonical/tcglog-parser"
	"github.com/jessevdk/go-flags"

	rehash "github.com/canonical/pcr-rehash"
	internal_flags "github.com/canonical/pcr-rehash/internal/flags"
)

type options struct {
	Alg       internal_flags.HashAlgorithmId `long:"alg" description:"Hash algorithm to predict" default:"sha256" choice:"sha1" choice:"sha256" choice:"sha384" choice:"sha512"`
	Pcrs      internal_flags.PCRRange        `short:"p" long:"pcrs" description:"Predict the specified PCRs. Can be specified multiple times" default:"7"`
	NextStage string                         `long:"next-stage" description:"Path to the PE image that will be loaded and verified on the next boot"`
	Shim      string                         `long:"shim" description:"Path to the shim PE image whose embedded vendor certificate will be used for verification"`
	Verbose   bool                           `short:"v" long:"verbose" description:"Display the recorded and predicted digest of every event"`

	Positional struct {
		LogPath string `positional-arg-name:"log-path"`
	} `positional-args:"true"`
}

var opts options

func makeContext(alg tpm2.HashAlgorithmId) *rehash.RehashContext {
	c := &rehash.RehashContext{
		Alg: alg,
		StrategyMismatch: func(m *rehash.StrategyMismatch) {
			fmt.Fprintf(os.Stderr, "%v\n", m)
		}}
	if opts.NextStage != "" {
		c.NextStageImage = rehash.NewFileImage(opts.NextStage)
	}
	if opts.Shim != "" {
		c.ShimImage = rehash.NewFileImage(opts.Shim)
	}
	return c
}

func readLog(c *rehash.RehashContext) (*tcglog.Log, error) {
	if opts.Positional.LogPath == "" {
		return c.ReadEventLog()
	}

	f, err := os.Open(opts.Positional.LogPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return tcglog.ReadLog(f, &tcglog.LogOptions{})
}

func run() error {
	if _, err := flags.Parse(&opts); err != nil {
		return err
	}

	alg := tpm2.HashAlgorithmId(opts.Alg)
	c := makeContext(alg)

	log, err := readLog(c)
	if err != nil {
		return fmt.Errorf("cannot read log: %v", err)
	}

	if !log.Algorithms.Contains(alg) {
		return fmt.Errorf("the log does not contain entries for the %v digest algorithm", alg)
	}

	if opts.Verbose {
		for i, event := range log.Events {
			if !opts.Pcrs.Contains(event.PCRIndex) || event.EventType == tcglog.EventTypeNoAction {
				continue
			}

			predicted, err := rehash.PredictedDigest(event, c)
			if err != nil {
				return fmt.Errorf("cannot predict digest for event %d: %v", i, err)
			}

			marker := " "
			if !bytes.Equal(predicted, event.Digests[c.Alg]) {
				marker = "*"
			}
			fmt.Printf("%2d %s %-*x %s\n", event.PCRIndex, marker, c.Alg.Size()*2, predicted, event.EventType)
		}
	}

	for _, pcr := range opts.Pcrs {
		value, err := rehash.PredictPCR(log, pcr, c)
		if err != nil {
			return err
		}
		fmt.Printf("PCR %d: %x\n", pcr, value)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		switch e := err.(type) {
		case *flags.Error:
			// flags already prints this
			if e.Type != flags.ErrHelp {
				os.Exit(1)
			}
		default:
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

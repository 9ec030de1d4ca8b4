// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/passgym/lib/codec"
	"github.com/bureau-foundation/passgym/lib/process"
	"github.com/bureau-foundation/passgym/lib/trajectory"
)

func replayCommand(args []string, stdout io.Writer) error {
	var showWire, raw bool
	flagSet := pflag.NewFlagSet("passgym replay", pflag.ContinueOnError)
	flagSet.BoolVar(&showWire, "wire", false, "show the wire pass list sent at each step")
	flagSet.BoolVar(&raw, "raw", false, "print each record in CBOR diagnostic notation")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printReplayHelp(stdout, flagSet)
			return nil
		}
		return process.Usage("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printReplayHelp(stdout, flagSet)
		return nil
	}
	if flagSet.NArg() != 1 {
		return process.Usage("replay takes exactly one trajectory file")
	}

	reader, err := trajectory.Open(flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer reader.Close()

	if raw {
		return dumpRaw(stdout, reader)
	}

	// A trajectory cut short by a crash still renders up to the last
	// complete step.
	steps, readErr := reader.ReadAll()
	replay := replayView{
		header:      reader.Header(),
		compression: reader.Compression(),
		steps:       steps,
		showWire:    showWire,
		width:       terminalWidth(stdout),
	}
	if err := replay.render(stdout); err != nil {
		return err
	}
	return readErr
}

// dumpRaw writes the header and every step record as CBOR diagnostic
// notation, one record per line.
func dumpRaw(w io.Writer, reader *trajectory.Reader) error {
	header, err := codec.Marshal(reader.Header())
	if err != nil {
		return fmt.Errorf("encoding trajectory header: %w", err)
	}
	diagnostic, err := codec.Diagnose(header)
	if err != nil {
		return fmt.Errorf("diagnosing trajectory header: %w", err)
	}
	if _, err := fmt.Fprintf(w, "header %s\n", diagnostic); err != nil {
		return err
	}

	for index := 0; ; index++ {
		record, err := reader.NextRaw()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		diagnostic, err := codec.Diagnose(record)
		if err != nil {
			return fmt.Errorf("diagnosing step %d: %w", index, err)
		}
		if _, err := fmt.Fprintf(w, "step %d %s\n", index, diagnostic); err != nil {
			return err
		}
	}
}

func printReplayHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Render a recorded episode trajectory.

Usage:
  passgym replay FILE [flags]

Flags:
%s`, flagSet.FlagUsages())
}

type replayView struct {
	header      trajectory.Header
	compression trajectory.Compression
	steps       []trajectory.Step
	showWire    bool
	width       int
}

func (v replayView) render(w io.Writer) error {
	s := newStyles(w)
	header := v.header

	field := func(label, value string) string {
		return s.label.Render(label+":") + " " + value + "\n"
	}
	var builder strings.Builder
	builder.WriteString(field("episode", header.Episode.String()))
	builder.WriteString(field("function", fmt.Sprintf("%s/%s (instance %d)", header.Benchmark, header.Function, header.Instance)))
	if header.Strategy != "" {
		builder.WriteString(field("reward", header.Strategy))
	}
	builder.WriteString(field("started", header.Started.UTC().Format(time.RFC3339)))
	builder.WriteString(field("compression", v.compression.String()))
	builder.WriteString(field("baseline", describe(header.Baseline)))
	builder.WriteString(field("initial", describe(header.Initial)))
	builder.WriteString("\n")
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return err
	}

	columns := []string{"#", "actions", "size", "runtime", "share", "reward", "status", "elapsed"}
	if v.showWire {
		columns = append(columns, "wire")
	}
	steps := newTable(s, columns...)
	for _, column := range []int{0, 2, 3, 4, 5, 7} {
		steps.right[column] = true
	}
	steps.wrap = 1
	steps.maxWidth = v.width

	var total float64
	invalid := 0
	for _, step := range v.steps {
		total += step.Reward
		status, statusStyle := "", s.plain
		switch {
		case step.Invalid:
			status, statusStyle = "invalid", s.bad
			invalid++
		case step.Done:
			status, statusStyle = "done", s.dim
		}

		rewardStyle := s.plain
		if step.Reward > 0 {
			rewardStyle = s.good
		} else if step.Reward < 0 {
			rewardStyle = s.bad
		}

		row := []cell{
			{text: strconv.Itoa(step.Index), style: s.plain},
			{text: strings.Join(step.Actions, " "), style: s.plain},
			{text: strconv.FormatInt(step.Observation.Size, 10), style: s.plain},
			{text: fmt.Sprintf("%.4fs", step.Observation.RuntimeSec), style: s.plain},
			{text: fmt.Sprintf("%.1f%%", step.Observation.RuntimePercent), style: s.plain},
			{text: fmt.Sprintf("%+.4f", step.Reward), style: rewardStyle},
			{text: status, style: statusStyle},
			{text: step.Elapsed.Round(time.Millisecond).String(), style: s.dim},
		}
		if v.showWire {
			row = append(row, cell{text: strings.Join(step.WirePasses, " "), style: s.dim})
		}
		steps.add(row...)
	}
	if err := steps.render(w); err != nil {
		return err
	}

	summary := fmt.Sprintf("\n%s %d steps, %d invalid, return %+.4f",
		s.label.Render("total:"), len(v.steps), invalid, total)
	if len(v.steps) > 0 && header.Baseline.Size > 0 {
		final := v.steps[len(v.steps)-1].Observation.Size
		change := 100 * float64(final-header.Baseline.Size) / float64(header.Baseline.Size)
		summary += fmt.Sprintf(", final size %d (%+.2f%% vs baseline)", final, change)
	}
	_, err := io.WriteString(w, summary+"\n")
	return err
}

func describe(observation trajectory.Observation) string {
	return fmt.Sprintf("size %d, runtime %.4fs (%.1f%%)",
		observation.Size, observation.RuntimeSec, observation.RuntimePercent)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/passgym/lib/pass"
	"github.com/bureau-foundation/passgym/lib/pass/catalog"
	"github.com/bureau-foundation/passgym/lib/process"
)

func catalogCommand(args []string, stdout io.Writer) error {
	var catalogPath, configPath string
	var category int
	flagSet := pflag.NewFlagSet("passgym catalog", pflag.ContinueOnError)
	flagSet.StringVar(&catalogPath, "catalog", "", "pass catalog (default: paths.catalog from the config)")
	flagSet.StringVar(&configPath, "config", "", "passgym.yaml (default: $PASSGYM_CONFIG)")
	flagSet.IntVar(&category, "category", -1, "list only this category (default: all)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printCatalogHelp(stdout, flagSet)
			return nil
		}
		return process.Usage("%v", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printCatalogHelp(stdout, flagSet)
		return nil
	}
	if flagSet.NArg() > 0 {
		return process.Usage("unexpected argument: %s", flagSet.Arg(0))
	}

	if catalogPath == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		catalogPath = cfg.Paths.Catalog
	}
	passes, err := catalog.Load(catalogPath)
	if err != nil {
		return err
	}
	return renderCatalog(stdout, passes, category)
}

func printCatalogHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `List the actions a pass catalog offers, in action-space order.

With --category, the index column is the action index a session in
that category accepts as #INDEX.

Usage:
  passgym catalog [flags]

Flags:
%s`, flagSet.FlagUsages())
}

func renderCatalog(w io.Writer, passes *catalog.Catalog, category int) error {
	s := newStyles(w)
	listing := newTable(s, "index", "pass", "category")
	listing.right[0] = true
	listing.right[2] = true

	var names []string
	if category >= 0 {
		names = passes.Passes(pass.Category(category))
		if len(names) == 0 {
			return fmt.Errorf("catalog has no passes in category %d", category)
		}
	} else {
		names = passes.Names()
	}
	for i, name := range names {
		passCategory, _ := passes.Category(name)
		listing.add(
			cell{text: strconv.Itoa(i), style: s.dim},
			cell{text: name, style: s.plain},
			cell{text: strconv.Itoa(int(passCategory)), style: s.plain},
		)
	}
	return listing.render(w)
}

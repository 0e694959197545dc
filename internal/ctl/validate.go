package ctl

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/large-farva/vtol-groundstation/internal/validate"
)

// ErrChecksFailed is returned by Validate when at least one check fails.
var ErrChecksFailed = errors.New("flight log failed validation")

// Validate runs every controller check over a recorded flight log.
func Validate(path string, jsonOutput bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rep, err := validate.Run(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if jsonOutput {
		type result struct {
			Name   string `json:"name"`
			Passed bool   `json:"passed"`
			Error  string `json:"error,omitempty"`
		}
		out := struct {
			File    string   `json:"file"`
			Rows    int      `json:"rows"`
			Skipped int      `json:"skipped"`
			Passed  int      `json:"passed"`
			Total   int      `json:"total"`
			Results []result `json:"results"`
		}{
			File:    path,
			Rows:    len(rep.Log.Rows),
			Skipped: rep.Log.Skipped,
			Passed:  rep.Passed(),
			Total:   len(rep.Results),
		}
		for _, r := range rep.Results {
			res := result{Name: r.Name, Passed: r.Passed()}
			if r.Err != nil {
				res.Error = r.Err.Error()
			}
			out.Results = append(out.Results, res)
		}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		fmt.Println()
		fmt.Printf("  %s %s (%s rows", header("validating"), path, humanize.Comma(int64(len(rep.Log.Rows))))
		if rep.Log.Skipped > 0 {
			fmt.Printf(", %d undecodable skipped", rep.Log.Skipped)
		}
		fmt.Println(")")
		for _, r := range rep.Results {
			fmt.Printf("  %s  %s", passFail(r.Passed()), padRight(r.Name, 14))
			if r.Err != nil {
				fmt.Printf(" %s", colorize(dim, r.Err.Error()))
			}
			fmt.Println()
		}
		fmt.Printf("\n  %d/%d tests passed\n\n", rep.Passed(), len(rep.Results))
	}

	if rep.Passed() != len(rep.Results) {
		return ErrChecksFailed
	}
	return nil
}

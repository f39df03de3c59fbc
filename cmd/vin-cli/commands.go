package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vindiesel/vin-engine/internal/enrichment"
	"github.com/vindiesel/vin-engine/internal/scan"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

func newNormalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <text>",
		Short: "Clean up VIN input (uppercase, O→0, I→1, Q→0, strip separators)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := vin.Normalize(strings.Join(args, " "))
			plausible := vin.IsPlausiblePrefix(n)

			if a.outputJSON {
				return a.ui.JSON(map[string]interface{}{
					"vin":       n,
					"plausible": plausible,
					"complete":  len(n) == vin.Length,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)
			if len(n) != vin.Length {
				a.ui.Warning("%d of %d characters", len(n), vin.Length)
			}
			return nil
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <vin>",
		Short: "Check a VIN against the syntax rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := strings.ToUpper(strings.TrimSpace(args[0]))
			res := vin.Validate(v)
			checkOK := res.Valid && vin.HasValidCheckDigit(v)

			if a.outputJSON {
				if err := a.ui.JSON(map[string]interface{}{
					"vin":                v,
					"valid":              res.Valid,
					"errors":             res.Errors,
					"checkDigitVerified": checkOK,
				}); err != nil {
					return err
				}
			} else if res.Valid {
				a.ui.Success("%s is a valid VIN", v)
				if checkOK {
					a.ui.Info("check digit verified")
				} else {
					a.ui.Warning("check digit does not match (not required outside North America)")
				}
			} else {
				a.ui.Error("%s is not a valid VIN", v)
				for _, e := range res.Errors {
					a.ui.Field("error", e)
				}
			}

			if !res.Valid {
				return failed("invalid vin")
			}
			return nil
		},
	}
}

func newDecodeCmd(a *app) *cobra.Command {
	var (
		remote    bool
		scannedBy string
	)

	cmd := &cobra.Command{
		Use:   "decode <vin>",
		Short: "Decode year, make and model",
		Long: `Decode derives year, make and model from the VIN locally.

With --remote the local answer is shown first, then replaced by the NHTSA vPIC
answer when it arrives. If the service cannot be reached the local answer
stands and a warning is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.enrichmentService()
			if err != nil {
				return err
			}
			method := vin.ParseScanMethod(scannedBy)

			if !remote || !svc.Online() {
				res, err := svc.DecodeLocal(args[0], method)
				if err != nil {
					return a.reportInvalid(err)
				}
				if remote {
					a.ui.Warning("offline: showing local decode only")
				}
				return a.printDecode(res)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			updates, err := svc.DecodeLocalFirst(ctx, args[0], method)
			if err != nil {
				return a.reportInvalid(err)
			}

			local := <-updates
			if !a.outputJSON {
				a.ui.Info("local: %s %s %s", local.Vehicle.Year, local.Vehicle.Make, local.Vehicle.Model)
			}

			spin := a.ui.NewSpinner("asking NHTSA vPIC...")
			spin.Start()
			final, ok := <-updates
			spin.Stop()

			if !ok {
				final = local
			}
			return a.printDecode(final.Result)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "look the VIN up in NHTSA vPIC")
	cmd.Flags().StringVar(&scannedBy, "scanned-by", "manual", "capture method: camera or manual")
	return cmd
}

func (a *app) printDecode(res enrichment.Result) error {
	if a.outputJSON {
		return a.ui.JSON(res)
	}

	v := res.Vehicle
	a.ui.Success("%s", v.VIN)
	a.ui.Field("year", v.Year)
	a.ui.Field("make", v.Make)
	a.ui.Field("model", v.Model)
	a.ui.Field("source", string(v.Source))
	a.ui.Field("scanned by", string(v.ScannedBy))
	if res.Cached {
		a.ui.Field("cached", "yes")
	}
	if !res.CheckDigitVerified {
		a.ui.Warning("check digit does not match")
	}
	if res.Degraded {
		a.ui.Warning("remote decode unavailable (%s), showing local estimate", res.DegradedReason)
	}
	return nil
}

func (a *app) reportInvalid(err error) error {
	var invalid *enrichment.InvalidVINError
	if !errors.As(err, &invalid) {
		return err
	}
	if a.outputJSON {
		if jerr := a.ui.JSON(map[string]interface{}{
			"vin":    invalid.VIN,
			"valid":  false,
			"errors": invalid.Validation.Errors,
		}); jerr != nil {
			return jerr
		}
	} else {
		a.ui.Error("%s is not a valid VIN", invalid.VIN)
		for _, e := range invalid.Validation.Errors {
			a.ui.Field("error", e)
		}
	}
	return failed("invalid vin")
}

func newExtractCmd(a *app) *cobra.Command {
	var confidence float64

	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Find a VIN in OCR text from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			var conf *float64
			if cmd.Flags().Changed("confidence") {
				conf = &confidence
			}
			return a.printExtraction("", vin.FindVINResult(text, conf))
		},
	}

	cmd.Flags().Float64Var(&confidence, "confidence", 0, "OCR confidence (0-100) to report with the result")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

func (a *app) printExtraction(source string, res vin.ExtractionResult) error {
	if a.outputJSON {
		out := map[string]interface{}{"result": res}
		if source != "" {
			out["source"] = source
		}
		if err := a.ui.JSON(out); err != nil {
			return err
		}
	} else {
		prefix := ""
		if source != "" {
			prefix = source + ": "
		}
		if res.Success {
			if res.Confidence != nil {
				a.ui.Success("%s%s (confidence %.0f%%)", prefix, res.VIN, *res.Confidence)
			} else {
				a.ui.Success("%s%s", prefix, res.VIN)
			}
		} else {
			a.ui.Error("%s%s", prefix, res.Error)
		}
	}

	if !res.Success {
		return failed(string(res.Reason))
	}
	return nil
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <image>...",
		Short: "Run tesseract on images and extract VINs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recognizer := scan.NewTesseract(a.cfg.OCR, scan.ExecRunner{Logger: a.logger})
			scanner := scan.NewScanner(recognizer, a.logger, nil)

			type scanned struct {
				Image  string               `json:"image"`
				Result vin.ExtractionResult `json:"result"`
			}

			var bar *ProgressBar
			if len(args) > 1 {
				bar = a.ui.NewProgressBar(int64(len(args)), "scanning")
			}

			results := make([]scanned, 0, len(args))
			missing := 0
			for _, img := range args {
				res := scanner.ExtractVIN(cmd.Context(), img)
				results = append(results, scanned{Image: img, Result: res})
				if !res.Success {
					missing++
				}
				if bar != nil {
					bar.Add(1)
				}
			}
			if bar != nil {
				bar.Finish()
			}

			if a.outputJSON {
				if err := a.ui.JSON(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Result.Success {
						a.ui.Success("%s: %s", r.Image, r.Result.VIN)
					} else {
						a.ui.Error("%s: %s", r.Image, r.Result.Error)
					}
				}
			}

			if missing > 0 {
				return failed(fmt.Sprintf("no VIN found in %d of %d images", missing, len(args)))
			}
			return nil
		},
	}
}

func newBatchCmd(a *app) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Decode a file of VINs, one per line",
		Long: `Batch decodes every VIN in a file (one per line; blank lines and lines
starting with # are skipped). Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			vins := parseVINList(text)
			if len(vins) == 0 {
				a.ui.Warning("no VINs in input")
				return nil
			}

			svc, err := a.enrichmentService()
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = a.cfg.Enrichment.BatchConcurrency
			}

			progress := a.ui.NewBatchProgress(int64(len(vins)))
			items, err := svc.DecodeBatch(cmd.Context(), vins, vin.ScanManual, concurrency, func(_ int, item enrichment.BatchItem) {
				progress.Done(item.Result.Degraded)
			})
			progress.Wait()
			if err != nil {
				return err
			}

			return a.printBatch(items)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel decodes (default from config)")
	return cmd
}

func parseVINList(text string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (a *app) printBatch(items []enrichment.BatchItem) error {
	invalid := 0

	type row struct {
		Input  string             `json:"input"`
		Valid  bool               `json:"valid"`
		Errors []string           `json:"errors,omitempty"`
		Result *enrichment.Result `json:"result,omitempty"`
	}
	rows := make([]row, 0, len(items))
	table := make([][]string, 0, len(items))

	for _, it := range items {
		var inv *enrichment.InvalidVINError
		if errors.As(it.Err, &inv) {
			invalid++
			rows = append(rows, row{Input: it.Input, Errors: inv.Validation.Errors})
			table = append(table, []string{it.Input, "", "", "", "invalid: " + strings.Join(inv.Validation.Errors, "; ")})
			continue
		}
		if it.Err != nil {
			return it.Err
		}

		res := it.Result
		rows = append(rows, row{Input: it.Input, Valid: true, Result: &res})
		status := string(res.Vehicle.Source)
		if res.Degraded {
			status += " (" + res.DegradedReason + ")"
		}
		table = append(table, []string{res.Vehicle.VIN, res.Vehicle.Year, res.Vehicle.Make, res.Vehicle.Model, status})
	}

	if a.outputJSON {
		if err := a.ui.JSON(rows); err != nil {
			return err
		}
	} else {
		a.ui.Table([]string{"VIN", "YEAR", "MAKE", "MODEL", "SOURCE"}, table)
		a.ui.Info("%d decoded, %d invalid", len(items)-invalid, invalid)
	}

	if invalid > 0 {
		return failed(fmt.Sprintf("%d invalid VINs", invalid))
	}
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.outputJSON {
				return a.ui.JSON(map[string]string{
					"version": version,
					"go":      runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vin-cli %s\n", version)
			return nil
		},
	}
}

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sdejongh/contentsync/pkg/models"
)

// WriteDetailsReport writes the per-file details of a run to a file.
// Format can be "human" or "json". Nothing is written when the run touched
// no file and recorded no failure.
func WriteDetailsReport(report *models.RunReport, path string, format string) error {
	if len(report.Selected) == 0 && len(report.Duplicates) == 0 &&
		len(report.HashErrors) == 0 && len(report.TransferErrors) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create details file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		err = writeDetailsJSON(report, file)
	default: // "human"
		err = writeDetailsHuman(report, file)
	}
	if err != nil {
		return fmt.Errorf("failed to write details file: %w", err)
	}
	return file.Close()
}

func writeDetailsHuman(report *models.RunReport, w io.Writer) error {
	fmt.Fprintf(w, "Run Details\n")
	fmt.Fprintf(w, "===========\n\n")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Operation: %s\n", report.OperationID)
	fmt.Fprintf(w, "Source: %s\n", report.SourcePath)
	fmt.Fprintf(w, "Destination: %s\n", report.DestPath)
	fmt.Fprintf(w, "Mode: %s\n", report.Mode)
	fmt.Fprintf(w, "Algorithm: %s\n", report.Algorithm)
	fmt.Fprintf(w, "Status: %s\n\n", report.Status)

	section := func(title string, n int) {
		label := fmt.Sprintf("%s (%d files)", title, n)
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))
	}

	if len(report.Selected) > 0 {
		failed := make(map[string]string, len(report.TransferErrors))
		for _, e := range report.TransferErrors {
			failed[e.FilePath] = e.Error
		}
		section("New content", len(report.Selected))
		for _, e := range report.Selected {
			fmt.Fprintf(w, "  %s\n", e.RelativePath)
			fmt.Fprintf(w, "    %s, hash: %s\n", formatBytes(e.Size), e.Digest.Short())
			if msg, ok := failed[e.RelativePath]; ok {
				fmt.Fprintf(w, "    Error: %s\n", msg)
			}
		}
		fmt.Fprintf(w, "\n")
	}

	if len(report.Duplicates) > 0 {
		section("Already in destination", len(report.Duplicates))
		for _, e := range report.Duplicates {
			fmt.Fprintf(w, "  %s\n", e.RelativePath)
			fmt.Fprintf(w, "    %s, hash: %s\n", formatBytes(e.Size), e.Digest.Short())
		}
		fmt.Fprintf(w, "\n")
	}

	if len(report.HashErrors) > 0 {
		section("Unreadable", len(report.HashErrors))
		for _, e := range report.HashErrors {
			fmt.Fprintf(w, "  %s [%s]\n", e.FilePath, e.Phase)
			fmt.Fprintf(w, "    Error: %s\n", e.Error)
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}

func writeDetailsJSON(report *models.RunReport, w io.Writer) error {
	errs := make([]JSONErrorData, 0, len(report.HashErrors)+len(report.TransferErrors))
	for _, e := range report.HashErrors {
		errs = append(errs, JSONErrorData{Path: e.FilePath, Phase: e.Phase, Error: e.Error})
	}
	for _, e := range report.TransferErrors {
		errs = append(errs, JSONErrorData{Path: e.FilePath, Phase: e.Phase, Error: e.Error})
	}

	output := struct {
		Generated   string          `json:"generated"`
		OperationID string          `json:"operation_id"`
		SourcePath  string          `json:"source_path"`
		DestPath    string          `json:"dest_path"`
		Mode        string          `json:"mode"`
		Status      string          `json:"status"`
		Selected    []JSONFileData  `json:"selected"`
		Duplicates  []JSONFileData  `json:"duplicates"`
		Errors      []JSONErrorData `json:"errors"`
	}{
		Generated:   time.Now().Format(time.RFC3339),
		OperationID: report.OperationID,
		SourcePath:  report.SourcePath,
		DestPath:    report.DestPath,
		Mode:        string(report.Mode),
		Status:      string(report.Status),
		Selected:    jsonFiles(report.Selected),
		Duplicates:  jsonFiles(report.Duplicates),
		Errors:      errs,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

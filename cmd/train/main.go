// Command train fits a URL risk model from a labeled CSV and writes
// the model document used by the server.
//
// The input CSV has two columns: url,label. Label 1 marks phishing,
// 0 marks benign. A header row is detected and skipped.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"phishdetect/internal/classifier"
	"phishdetect/internal/features"
	"phishdetect/internal/urlproc"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	dataPath := flag.String("data", "", "path to the labeled CSV (url,label)")
	outPath := flag.String("out", "model.json", "path for the trained model document")
	kindFlag := flag.String("kind", "ensemble", "model kind: logistic, random_forest, gradient_boost, ensemble")
	flag.Parse()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "usage: train -data urls.csv [-out model.json] [-kind ensemble]")
		os.Exit(2)
	}

	kind, err := classifier.KindFromString(*kindFlag)
	if err != nil {
		slog.Error("Invalid model kind", "kind", *kindFlag, "error", err)
		os.Exit(1)
	}

	samples, labels, skipped, err := loadDataset(*dataPath)
	if err != nil {
		slog.Error("Failed to load dataset", "path", *dataPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Dataset loaded", "samples", len(samples), "skipped", skipped)

	model := classifier.New(kind)
	metrics, err := model.Train(samples, labels)
	if err != nil {
		slog.Error("Training failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("kind:       %s\n", kind)
	fmt.Printf("samples:    %d\n", len(samples))
	fmt.Printf("accuracy:   %.4f\n", metrics.Accuracy)
	fmt.Printf("precision:  %.4f\n", metrics.Precision)
	fmt.Printf("recall:     %.4f\n", metrics.Recall)
	fmt.Printf("f1:         %.4f\n", metrics.F1)
	fmt.Printf("roc_auc:    %.4f\n", metrics.ROCAUC)
	fmt.Printf("cv_f1:      %.4f +/- %.4f\n", metrics.CVF1Mean, metrics.CVF1Std)

	fmt.Println("\ntop features:")
	for _, fw := range model.FeatureImportance(15) {
		fmt.Printf("  %-45s %.4f\n", fw.Name, fw.Weight)
	}

	if err := model.Save(*outPath); err != nil {
		slog.Error("Failed to save model", "path", *outPath, "error", err)
		os.Exit(1)
	}
	slog.Info("Model saved", "path", *outPath)
}

// loadDataset extracts the offline feature set (lexical and pattern)
// for every parseable row. Rows whose URL fails validation are skipped
// and counted.
func loadDataset(path string) ([]features.Vector, []int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer f.Close()

	pre := urlproc.New(urlproc.DefaultMaxLength)
	lexical := features.NewLexicalExtractor()
	pattern := features.NewPatternExtractor()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	var (
		samples []features.Vector
		labels  []int
		skipped int
		first   = true
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, 0, fmt.Errorf("read csv: %w", err)
		}

		rawURL := strings.TrimSpace(record[0])
		rawLabel := strings.TrimSpace(record[1])

		if first {
			first = false
			if strings.EqualFold(rawURL, "url") {
				continue // header row
			}
		}

		label, err := strconv.Atoi(rawLabel)
		if err != nil || (label != 0 && label != 1) {
			skipped++
			continue
		}

		parsed, err := pre.Parse(rawURL)
		if err != nil {
			skipped++
			continue
		}

		v := features.NewVector()
		v.Merge(lexical.Extract(parsed.Original, parsed))
		patternVec, _ := pattern.Extract(parsed.Original)
		v.Merge(patternVec)

		samples = append(samples, v)
		labels = append(labels, label)
	}

	if len(samples) == 0 {
		return nil, nil, skipped, fmt.Errorf("no usable rows in %s", path)
	}
	return samples, labels, skipped, nil
}

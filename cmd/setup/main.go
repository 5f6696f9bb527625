package main

// One-shot index bootstrap: embeds a JSON reference corpus and writes the
// local flat index plus its metadata sidecar. Run before first serving, or
// whenever the corpus changes.

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"medassist/internal/config"
	"medassist/internal/embedding"
	"medassist/internal/logging"
	"medassist/internal/vector"
)

const maxEmbedWorkers = 10

// corpusEntry mirrors the reference dataset: one passage per record,
// full_text preferred, description as fallback.
type corpusEntry struct {
	FullText    string `json:"full_text"`
	Description string `json:"description"`
	Name        string `json:"name"`
}

func main() {
	log := logging.New("setup")

	corpusPath := "data/medical_reference.json"
	if len(os.Args) > 1 {
		corpusPath = os.Args[1]
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	raw, err := os.ReadFile(corpusPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", corpusPath).Msg("reading corpus")
	}
	var corpus []corpusEntry
	if err := json.Unmarshal(raw, &corpus); err != nil {
		log.Fatal().Err(err).Msg("parsing corpus")
	}

	texts := make([]string, 0, len(corpus))
	for _, entry := range corpus {
		text := entry.FullText
		if text == "" {
			text = entry.Description
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		log.Fatal().Msg("corpus has no usable full_text or description fields")
	}
	log.Info().Int("records", len(texts)).Msg("embedding corpus")

	embedder := embedding.New(cfg.Embedding.URL, cfg.Embedding.Model,
		cfg.Embedding.Dimension, cfg.EmbeddingTimeout())

	start := time.Now()
	vectors := make([][]float32, len(texts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxEmbedWorkers)
	var mu sync.Mutex
	failed := 0
	for i, text := range texts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, text string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			vec, err := embedder.Embed(context.Background(), text)
			if err != nil {
				log.Error().Err(err).Int("record", i).Msg("embedding failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			vectors[i] = vec
		}(i, text)
	}
	wg.Wait()
	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("aborting, corpus only partially embedded")
	}

	index, err := vector.NewFlat(cfg.Embedding.Dimension,
		cfg.Index.Flat.IndexPath, cfg.Index.Flat.MetadataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("opening flat index")
	}

	entries := make([]vector.Entry, len(texts))
	for i, text := range texts {
		entries[i] = vector.Entry{
			Vector: vectors[i],
			Metadata: vector.Metadata{
				"full_text": text,
				"type":      "reference",
				"source":    "reference_corpus",
			},
		}
	}
	if err := index.Add(context.Background(), entries); err != nil {
		log.Fatal().Err(err).Msg("writing index")
	}
	log.Info().Int("vectors", index.Len()).Dur("took", time.Since(start)).
		Str("index", cfg.Index.Flat.IndexPath).Msg("index built")
}

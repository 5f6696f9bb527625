package main

// Interactive REPL against the same core the server uses. Handy for poking
// at retrieval quality without a frontend.

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"medassist/internal/chat"
	"medassist/internal/config"
	"medassist/internal/embedding"
	"medassist/internal/llm"
	"medassist/internal/logging"
	"medassist/internal/retrieve"
	"medassist/internal/vector"
)

func main() {
	log := logging.New("cli")
	ctx := context.Background()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	embedder := embedding.New(cfg.Embedding.URL, cfg.Embedding.Model,
		cfg.Embedding.Dimension, cfg.EmbeddingTimeout())

	var index vector.Index
	switch cfg.Index.Backend {
	case config.IndexQdrant:
		index, err = vector.ConnectQdrant(cfg.Index.Qdrant.Addr, cfg.Index.Qdrant.Collection,
			cfg.Embedding.Dimension, cfg.RetrievalMinScore())
	default:
		index, err = vector.NewFlat(cfg.Embedding.Dimension,
			cfg.Index.Flat.IndexPath, cfg.Index.Flat.MetadataPath)
	}
	if err != nil {
		log.Warn().Err(err).Msg("index unavailable, answers will have no context")
		index = vector.Unavailable{}
	}

	retriever := retrieve.New(embedder, index, retrieve.Options{
		MinScore:         cfg.RetrievalMinScore(),
		IncludeGenerated: cfg.RetrievalIncludesGenerated(),
	}, logging.New("retriever"))

	var client llm.Client
	switch cfg.LLM.Provider {
	case config.LLMGroq:
		client, err = llm.NewGroq(cfg.LLM.Model, cfg.LLMTimeout())
	default:
		client, err = llm.NewGemini(ctx, cfg.LLM.Model, cfg.LLMTimeout())
	}
	if err != nil {
		log.Fatal().Err(err).Msg("constructing llm client")
	}

	service := chat.NewService(retriever, client, cfg.Retrieval.TopK,
		cfg.Retrieval.StoreInteractions, logging.New("chat"))

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Enter your question: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)
		if input == "" || input == "exit" {
			return
		}

		answer, snippets, err := service.Answer(ctx, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n(%d context snippets used)\n\n", answer, len(snippets))
	}
}

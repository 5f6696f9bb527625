package main

import (
	"context"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"medassist/internal/chat"
	"medassist/internal/config"
	"medassist/internal/embedding"
	"medassist/internal/extract"
	"medassist/internal/handlers"
	"medassist/internal/llm"
	"medassist/internal/logging"
	"medassist/internal/report"
	"medassist/internal/retrieve"
	"medassist/internal/routing"
	"medassist/internal/vector"
)

func main() {
	log := logging.New("server")

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	ctx := context.Background()
	embedder := embedding.New(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.EmbeddingTimeout())

	// a missing index must not stop the server; retrieval degrades to
	// "index unavailable" per request instead
	index := openIndex(cfg, log)

	retriever := retrieve.New(embedder, index, retrieve.Options{
		MinScore:         cfg.RetrievalMinScore(),
		IncludeGenerated: cfg.RetrievalIncludesGenerated(),
	}, logging.New("retriever"))

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing llm client")
	}

	chatService := chat.NewService(retriever, client, cfg.Retrieval.TopK,
		cfg.Retrieval.StoreInteractions, logging.New("chat"))
	pipeline := report.NewPipeline(extract.New(logging.New("extract")), client,
		embedder, index, cfg.Reports.PersistToIndex, logging.New("report"))
	reportStore := report.NewStore(cfg.Reports.MetadataPath)

	handler := handlers.New(chatService, pipeline, reportStore, logging.New("http"))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.Server.FrontendOrigin},
		AllowMethods:     []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	routing.InitRoutes(e, handler)

	log.Info().Str("addr", cfg.Server.Addr).Str("index", cfg.Index.Backend).
		Str("llm", cfg.LLM.Provider).Msg("starting server")
	e.Logger.Fatal(e.Start(cfg.Server.Addr))
}

func openIndex(cfg *config.Config, log zerolog.Logger) vector.Index {
	switch cfg.Index.Backend {
	case config.IndexQdrant:
		index, err := vector.ConnectQdrant(cfg.Index.Qdrant.Addr, cfg.Index.Qdrant.Collection,
			cfg.Embedding.Dimension, cfg.RetrievalMinScore())
		if err != nil {
			log.Error().Err(err).Msg("qdrant unavailable")
			return vector.Unavailable{}
		}
		return index
	default:
		index, err := vector.NewFlat(cfg.Embedding.Dimension,
			cfg.Index.Flat.IndexPath, cfg.Index.Flat.MetadataPath)
		if err != nil {
			log.Error().Err(err).Msg("flat index unavailable")
			return vector.Unavailable{}
		}
		return index
	}
}

func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case config.LLMGroq:
		return llm.NewGroq(cfg.LLM.Model, cfg.LLMTimeout())
	default:
		return llm.NewGemini(ctx, cfg.LLM.Model, cfg.LLMTimeout())
	}
}

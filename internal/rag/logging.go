package rag

import (
	"context"

	"go.uber.org/zap"

	"mini-rag/internal/models"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	log = log.With(
		zap.String("service", "rag"),
	)

	return func(next Service) Service {
		log.Info("service initialized")

		return &loggingMiddleware{
			log:  log,
			next: next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) Ingest(ctx context.Context, doc models.Document) (*models.IngestResult, error) {
	log := mw.log.With(
		zap.String("action", "ingest"),
		zap.String("source", doc.Filename),
		zap.Int("bytes", len(doc.Data)),
	)

	result, err := mw.next.Ingest(ctx, doc)
	if err != nil {
		if IsRecoverable(err) {
			log.Warn(err.Error())
		} else {
			log.Error(err.Error())
		}
		return nil, err
	}

	log.Info("document ingested",
		zap.Int("chunks", result.Chunks),
		zap.Int("upserted", result.Upserted),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (mw *loggingMiddleware) Ask(ctx context.Context, question string) (*models.Answer, error) {
	log := mw.log.With(
		zap.String("action", "ask"),
		zap.String("question", question),
	)

	answer, err := mw.next.Ask(ctx, question)
	if err != nil {
		if IsRecoverable(err) {
			log.Warn(err.Error())
		} else {
			log.Error(err.Error())
		}
		return nil, err
	}

	log.Info("question answered",
		zap.Int("retrieved", answer.Retrieved),
		zap.Int("sources", len(answer.Sources)),
		zap.Bool("no_context", answer.NoContext),
		zap.Duration("elapsed", answer.Elapsed),
	)
	return answer, nil
}

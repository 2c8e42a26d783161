package rag

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"mini-rag/internal/models"
)

type EndpointSet struct {
	Ingest endpoint.Endpoint
	Ask    endpoint.Endpoint
}

func MakeEndpoints(svc Service) EndpointSet {
	return EndpointSet{
		Ingest: IngestEndpoint(svc),
		Ask:    AskEndpoint(svc),
	}
}

type IngestRequest struct {
	Filename string
	Data     []byte
}

func IngestEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(IngestRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Ingest(ctx, models.Document{
			Filename: req.Filename,
			Data:     req.Data,
		})
	}
}

type AskRequest struct {
	Question string `json:"question" form:"question"`
}

func AskEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(AskRequest)
		if !ok {
			return nil, errors.New("invalid request type")
		}

		return svc.Ask(ctx, req.Question)
	}
}

package vector

import (
	"context"
	"fmt"

	"github.com/golang/protobuf/proto"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Qdrant is the hosted backend. Cosine similarity, so Search returns scores
// descending and the server already drops matches below minScore.
type Qdrant struct {
	client     qdrant.PointsClient
	collection string
	minScore   float32
}

// ConnectQdrant dials the qdrant gRPC port and creates the collection when
// it does not exist yet.
func ConnectQdrant(addr, collection string, dim int, minScore float32) (*Qdrant, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	collClient := qdrant.NewCollectionsClient(conn)
	_, err = collClient.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: collection})
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return nil, err
		}
		_, err = collClient.Create(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(dim),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return nil, err
		}
	}

	return &Qdrant{
		client:     qdrant.NewPointsClient(conn),
		collection: collection,
		minScore:   minScore,
	}, nil
}

func (q *Qdrant) Metric() Metric { return Cosine }

func (q *Qdrant) Add(ctx context.Context, entries []Entry) error {
	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payloadFrom(e.Metadata),
		}
	}
	resp, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	if err != nil {
		return err
	}
	st := resp.GetResult().GetStatus()
	if st != qdrant.UpdateStatus_Acknowledged && st != qdrant.UpdateStatus_Completed {
		return fmt.Errorf("upsert not acknowledged, status %d", st)
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, vec []float32, k int) ([]Match, error) {
	resp, err := q.client.Search(ctx, &qdrant.SearchPoints{
		CollectionName: q.collection,
		Vector:         vec,
		Limit:          uint64(k),
		ScoreThreshold: proto.Float32(q.minScore),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, err
	}
	matches := make([]Match, len(resp.GetResult()))
	for i, point := range resp.GetResult() {
		matches[i] = Match{
			ID:       int64(i),
			Score:    point.GetScore(),
			Metadata: metadataFrom(point.GetPayload()),
		}
	}
	return matches, nil
}

func payloadFrom(meta Metadata) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(meta))
	for key, val := range meta {
		switch v := val.(type) {
		case string:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
		case int:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
		case int64:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
		case float64:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
		case float32:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(v)}}
		case bool:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}
		default:
			payload[key] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprint(v)}}
		}
	}
	return payload
}

func metadataFrom(payload map[string]*qdrant.Value) Metadata {
	if payload == nil {
		return nil
	}
	meta := make(Metadata, len(payload))
	for key, val := range payload {
		switch kind := val.GetKind().(type) {
		case *qdrant.Value_StringValue:
			meta[key] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			meta[key] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			meta[key] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			meta[key] = kind.BoolValue
		}
	}
	return meta
}

package models

import "time"

// Instance is one remote knowledge-base endpoint plus its credentials.
// Instances are provisioned locally and never created by the sync engine.
type Instance struct {
	ID        string
	Name      string
	BaseURL   string
	APIKey    string
	Enabled   bool
	Healthy   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Dataset struct {
	ID               string
	InstanceID       string
	RemoteID         string
	Name             string
	Description      string
	ChunkMethod      string
	ParserConfig     map[string]interface{}
	EmbeddingModel   string
	Language         string
	DocumentCount    int
	ChunkCount       int
	LastSyncTime     *time.Time
	RemoteCreateTime *time.Time
	RemoteUpdateTime *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Document struct {
	ID               string
	DatasetID        string
	RemoteID         string
	Name             string
	Filename         string
	// FilePath is set only while a local file exists for (re)upload.
	FilePath         string
	Type             string
	Size             int64
	Language         string
	Status           DocumentStatus
	Progress         float64
	ProgressMsg      string
	ChunkCount       int
	LastSyncTime     *time.Time
	RemoteCreateTime *time.Time
	RemoteUpdateTime *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Chunk struct {
	ID           string
	DocumentID   string
	RemoteID     string
	Content      string
	Position     int
	PageNumber   int
	SpanStart    int
	SpanEnd      int
	TokenCount   int
	Similarity   float64
	Embedding    []float32
	Keywords     []string
	Metadata     map[string]interface{}
	LastSyncTime *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ChatAssistant struct {
	ID                  string
	InstanceID          string
	RemoteID            string
	Name                string
	Description         string
	Avatar              string
	Language            string
	ModelName           string
	Temperature         float64
	TopP                float64
	PresencePenalty     float64
	FrequencyPenalty    float64
	MaxTokens           int
	SimilarityThreshold float64
	KeywordWeight       float64
	TopN                int
	TopK                int
	Prompt              string
	EmptyResponse       string
	OpeningGreeting     string
	DatasetRemoteIDs    []string
	LastSyncTime        *time.Time
	RemoteCreateTime    *time.Time
	RemoteUpdateTime    *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Conversation struct {
	ID               string
	InstanceID       string
	AssistantID      string
	RemoteID         string
	Title            string
	Status           string
	MessageCount     int
	Dialog           map[string]interface{}
	Usage            map[string]interface{}
	LastActivityTime *time.Time
	LastSyncTime     *time.Time
	RemoteCreateTime *time.Time
	RemoteUpdateTime *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// LlmModel describes a chat/embedding/rerank model advertised by an instance.
// Fid is the remote feature id, unique per (instance, fid).
type LlmModel struct {
	ID            string
	InstanceID    string
	Fid           string
	Name          string
	Provider      string
	ModelType     string
	Available     bool
	MaxTokens     int
	StatusCode    int
	SupportsTools bool
	Tags          []string
	LastSyncTime  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

package http

// QueryRequest is the request body for POST /api/v1/query. Pool is
// optional; an empty pool searches the default collection.
type QueryRequest struct {
	Pool string `json:"pool"`
	Text string `json:"text"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Links  []string `json:"links"`
	Output string   `json:"output"`
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	Answer string   `json:"answer"`
	Links  []string `json:"links"`
}

// ReindexResponse is the response body for POST /api/v1/reindex.
type ReindexResponse struct {
	Status string `json:"status"`
}

// FileInfo is one tracked file in GET /api/v1/files.
type FileInfo struct {
	Path               string   `json:"path"`
	Status             string   `json:"status"`
	LastUpdatedSeconds int64    `json:"last_updated_seconds"`
	IndexingSeconds    *float64 `json:"indexing_seconds,omitempty"`
	TenantID           string   `json:"tenant_id,omitempty"`
}

// FilesResponse is the response body for GET /api/v1/files.
type FilesResponse struct {
	Files []FileInfo `json:"files"`
	Total int        `json:"total"`
}

// FileStatusRequest is the request body for POST /api/v1/files/status.
type FileStatusRequest struct {
	Paths []string `json:"paths"`
}

// FileStatusResponse maps each known path to its status. Unknown paths
// are omitted.
type FileStatusResponse struct {
	Statuses map[string]string `json:"statuses"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	Files       FileStats         `json:"files"`
	QueueDepth  int               `json:"queue_depth"`
	VectorStore *VectorStoreStats `json:"vectorstore,omitempty"`
}

// FileStats summarizes catalog rows.
type FileStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// VectorStoreStats summarizes stored chunks across collections.
type VectorStoreStats struct {
	Collections int `json:"collections"`
	Points      int `json:"points"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore string `json:"vectorstore"`
}

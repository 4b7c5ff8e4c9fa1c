package handler

type CandidateResponse struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Source         string   `json:"source"`
	DisplaySource  string   `json:"display_source"`
	Summary        string   `json:"summary"`
	BeijingRelated bool     `json:"is_beijing_related"`
	Sentiment      string   `json:"sentiment"`
	Bucket         string   `json:"bucket"`
	Topic          string   `json:"topic"`
	ExternalScore  *float64 `json:"external_score,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	BonusKeywords  []string `json:"bonus_keywords,omitempty"`
	ClusterID      *int64   `json:"cluster_id,omitempty"`
	PublishedAt    string   `json:"published_at"`
	Status         string   `json:"status"`
	DecidedBy      string   `json:"decided_by,omitempty"`
	DecidedAt      string   `json:"decided_at,omitempty"`
}

type ClusterResponse struct {
	ID      int64   `json:"id"`
	Members []int64 `json:"members"`
	Status  string  `json:"status"`
}

type CandidatesResponse struct {
	Candidates []CandidateResponse `json:"candidates"`
	Clusters   []ClusterResponse   `json:"clusters,omitempty"`
	Total      int                 `json:"total"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}

type ReviewItemsResponse struct {
	Items []CandidateResponse `json:"items"`
	Track string              `json:"track"`
}

type DiscardedResponse struct {
	Items  []CandidateResponse `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type EditPayload struct {
	Summary   string `json:"summary"`
	LLMSource string `json:"llm_source"`
}

type EditsRequest struct {
	Track string                `json:"track"`
	Actor string                `json:"actor"`
	Edits map[int64]EditPayload `json:"edits"`
}

type DecideRequest struct {
	Track     string  `json:"track"`
	Actor     string  `json:"actor"`
	Selected  []int64 `json:"selected"`
	Backup    []int64 `json:"backup"`
	Discarded []int64 `json:"discarded"`
	Pending   []int64 `json:"pending"`
}

type DecideResponse struct {
	Selected  int `json:"selected"`
	Backup    int `json:"backup"`
	Discarded int `json:"discarded"`
}

type OrderRequest struct {
	Track         string  `json:"track"`
	Actor         string  `json:"actor"`
	SelectedOrder []int64 `json:"selected_order"`
	BackupOrder   []int64 `json:"backup_order"`
}

type RestoreRequest struct {
	ID     int64  `json:"id"`
	Target string `json:"target"`
	Track  string `json:"track"`
	Actor  string `json:"actor"`
}

type ExportRequestBody struct {
	Track        string `json:"track"`
	View         string `json:"view"`
	ReportTag    string `json:"report_tag"`
	Template     string `json:"template"`
	Period       int    `json:"period"`
	TotalPeriod  int    `json:"total_period"`
	DryRun       bool   `json:"dry_run"`
	MarkExported bool   `json:"mark_exported"`
	Actor        string `json:"actor"`
}

type ExportResponse struct {
	Content     string `json:"content"`
	Count       int    `json:"count"`
	Period      int    `json:"period"`
	TotalPeriod int    `json:"total_period"`
}

type ArchiveRequest struct {
	Track string  `json:"track"`
	Actor string  `json:"actor"`
	IDs   []int64 `json:"ids"`
}

type StatsResponse struct {
	Track    string `json:"track"`
	Pending  int    `json:"pending"`
	Selected int    `json:"selected"`
	Backup   int    `json:"backup"`
	Exported int    `json:"exported"`
}

type ExportRecordResponse struct {
	ID          int64  `json:"id"`
	Track       string `json:"track"`
	Period      int    `json:"period"`
	TotalPeriod int    `json:"total_period"`
	Count       int    `json:"count"`
	ExportedBy  string `json:"exported_by"`
	ExportedAt  string `json:"exported_at"`
}

type ExportHistoryResponse struct {
	Exports []ExportRecordResponse `json:"exports"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

type SearchArticleResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Summary     string `json:"summary"`
	Sentiment   string `json:"sentiment"`
	Status      string `json:"status"`
	PublishedAt string `json:"published_at"`
}

type SearchResponse struct {
	Articles []SearchArticleResponse `json:"articles"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	Pages    int                     `json:"pages"`
	PerPage  int                     `json:"per_page"`
}

package lineage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ragsuite/internal/apierr"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	collection_name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	source_type TEXT NOT NULL,
	raw_text TEXT NOT NULL DEFAULT '',
	normalized_text TEXT NOT NULL DEFAULT '',
	workflow TEXT NOT NULL,
	chunking_mode TEXT NOT NULL,
	contextualization_mode TEXT NOT NULL,
	normalization_version TEXT NOT NULL DEFAULT '',
	chunking_version TEXT NOT NULL DEFAULT '',
	contextualization_version TEXT NOT NULL DEFAULT '',
	embedding_model TEXT NOT NULL DEFAULT '',
	raw_blob_key TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	chunk_index INTEGER NOT NULL,
	start_char INTEGER NOT NULL,
	end_char INTEGER NOT NULL,
	rationale TEXT NOT NULL DEFAULT '',
	raw_chunk TEXT NOT NULL DEFAULT '',
	normalized_chunk TEXT NOT NULL DEFAULT '',
	context_header TEXT NOT NULL DEFAULT '',
	contextualized_chunk TEXT NOT NULL,
	approved INTEGER NOT NULL DEFAULT 1,
	vector_point_id TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`

// Store is the SQL-authoritative lineage layer: projects own documents,
// documents own chunks (spec.md §3 Ownership).
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init lineage schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateProject inserts a new project; collectionName is derived by the
// caller as "{prefix}_{name.lower().replace(' ','_')}" per spec.md §3.
func (s *Store) CreateProject(ctx context.Context, id, name, description, collectionName string) (Project, error) {
	p := Project{ID: id, Name: name, Description: description, CollectionName: collectionName, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, collection_name, created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, p.Description, p.CollectionName, p.CreatedAt,
	)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, collection_name, created_at FROM projects WHERE id = ?`, id)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CollectionName, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Project{}, apierr.NotFound("project %s not found", id)
		}
		return Project{}, err
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, collection_name, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CollectionName, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject cascades to documents and chunks; the vector collection
// itself is deleted by the caller via internal/vectorstore.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id IN (SELECT id FROM documents WHERE project_id = ?)`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE project_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.NotFound("project %s not found", id)
	}
	return tx.Commit()
}

// CreateDocument inserts a document row.
func (s *Store) CreateDocument(ctx context.Context, d Document) (Document, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, project_id, name, source_type, raw_text, normalized_text, workflow,
			chunking_mode, contextualization_mode, normalization_version, chunking_version,
			contextualization_version, embedding_model, raw_blob_key, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.ProjectID, d.Name, string(d.SourceType), d.RawText, d.NormalizedText, string(d.Workflow),
		string(d.ChunkingMode), string(d.ContextualizationMode), d.NormalizationVersion, d.ChunkingVersion,
		d.ContextualizationVer, d.EmbeddingModel, d.RawBlobKey, d.CreatedAt,
	)
	if err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, source_type, raw_text, normalized_text, workflow, chunking_mode,
			contextualization_mode, normalization_version, chunking_version, contextualization_version,
			embedding_model, raw_blob_key, created_at FROM documents WHERE id = ?`, id))
}

func (s *Store) scanDocument(row *sql.Row) (Document, error) {
	var d Document
	var workflow, chunkingMode, contextMode, sourceType string
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &sourceType, &d.RawText, &d.NormalizedText, &workflow,
		&chunkingMode, &contextMode, &d.NormalizationVersion, &d.ChunkingVersion, &d.ContextualizationVer,
		&d.EmbeddingModel, &d.RawBlobKey, &d.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Document{}, apierr.NotFound("document not found")
		}
		return Document{}, err
	}
	d.Workflow = WorkflowMode(workflow)
	d.ChunkingMode = ChunkingMode(chunkingMode)
	d.ContextualizationMode = ContextualizationMode(contextMode)
	d.SourceType = SourceType(sourceType)
	return d, nil
}

func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, source_type, raw_text, normalized_text, workflow, chunking_mode,
			contextualization_mode, normalization_version, chunking_version, contextualization_version,
			embedding_model, raw_blob_key, created_at FROM documents WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var workflow, chunkingMode, contextMode, sourceType string
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &sourceType, &d.RawText, &d.NormalizedText, &workflow,
			&chunkingMode, &contextMode, &d.NormalizationVersion, &d.ChunkingVersion, &d.ContextualizationVer,
			&d.EmbeddingModel, &d.RawBlobKey, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Workflow = WorkflowMode(workflow)
		d.ChunkingMode = ChunkingMode(chunkingMode)
		d.ContextualizationMode = ContextualizationMode(contextMode)
		d.SourceType = SourceType(sourceType)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SetDocumentRawBlobKey stamps the best-effort archival key, per
// SPEC_FULL.md's ingestion supplement.
func (s *Store) SetDocumentRawBlobKey(ctx context.Context, documentID, key string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET raw_blob_key = ? WHERE id = ?`, key, documentID)
	return err
}

// ValidateDocumentIDs confirms every id in documentIDs belongs to
// projectID, returning apierr.Validation if any do not, per spec.md §4.6
// "validate document filter ownership".
func (s *Store) ValidateDocumentIDs(ctx context.Context, projectID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(documentIDs))
	args := make([]any, 0, len(documentIDs)+1)
	args = append(args, projectID)
	for i, id := range documentIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(
		`SELECT id FROM documents WHERE project_id = ? AND id IN (%s)`,
		strings.Join(placeholders, ","),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := make(map[string]bool, len(documentIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range documentIDs {
		if !found[id] {
			return apierr.Validation("document %s does not belong to project %s", id, projectID)
		}
	}
	return nil
}

// InsertChunks writes a document's chunks in one transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range chunks {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, chunk_index, start_char, end_char, rationale, raw_chunk,
				normalized_chunk, context_header, contextualized_chunk, approved, vector_point_id, created_at)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			c.ID, c.DocumentID, c.ChunkIndex, c.StartChar, c.EndChar, c.Rationale, c.RawChunk,
			c.NormalizedChunk, c.ContextHeader, c.ContextualizedChunk, c.Approved, c.VectorPointID, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d of document %s: %w", c.ChunkIndex, c.DocumentID, err)
		}
	}
	return tx.Commit()
}

// CandidateChunk is the retrieval-facing projection of an approved chunk,
// joined with its document for ordering and payload fields.
type CandidateChunk struct {
	ChunkKey            string
	DocumentID          string
	DocumentName        string
	ChunkIndex          int
	StartChar           int
	EndChar             int
	ContextHeader       string
	ContextualizedChunk string
	SourceType          SourceType
	DocumentCreatedAt   time.Time
}

// LoadApprovedChunks loads every approved chunk for projectID (optionally
// restricted to documentIDs), ordered by (document.created_at,
// chunk.chunk_index), per spec.md §4.6.
func (s *Store) LoadApprovedChunks(ctx context.Context, projectID string, documentIDs []string) ([]CandidateChunk, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT c.document_id, d.name, c.chunk_index, c.start_char, c.end_char,
		c.context_header, c.contextualized_chunk, d.source_type, d.created_at
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE d.project_id = ? AND c.approved = 1`)
	args := []any{projectID}

	if len(documentIDs) > 0 {
		placeholders := make([]string, len(documentIDs))
		for i, id := range documentIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query.WriteString(fmt.Sprintf(" AND c.document_id IN (%s)", strings.Join(placeholders, ",")))
	}
	query.WriteString(" ORDER BY d.created_at ASC, c.chunk_index ASC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("load approved chunks: %w", err)
	}
	defer rows.Close()

	var candidates []CandidateChunk
	for rows.Next() {
		var cc CandidateChunk
		var sourceType string
		if err := rows.Scan(&cc.DocumentID, &cc.DocumentName, &cc.ChunkIndex, &cc.StartChar, &cc.EndChar,
			&cc.ContextHeader, &cc.ContextualizedChunk, &sourceType, &cc.DocumentCreatedAt); err != nil {
			return nil, err
		}
		cc.SourceType = SourceType(sourceType)
		cc.ChunkKey = ChunkKey(cc.DocumentID, cc.ChunkIndex)
		candidates = append(candidates, cc)
	}
	return candidates, rows.Err()
}

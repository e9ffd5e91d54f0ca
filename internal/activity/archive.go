package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/arvid/tenantdb/internal/model"
)

// ObjectPutter is the slice of the S3 API the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive contains the audit-trail archival activities run by the
// cron workflow: aged audit entries are batched to object storage and
// then deleted from the control plane.
type Archive struct {
	logger zerolog.Logger
	db     DB
	client ObjectPutter
	bucket string
}

// NewArchive creates a new Archive activity struct against an
// S3-compatible endpoint.
func NewArchive(logger zerolog.Logger, db DB, endpoint, accessKey, secretKey, bucket string) *Archive {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})
	return &Archive{
		logger: logger.With().Str("component", "audit-archive").Logger(),
		db:     db,
		client: client,
		bucket: bucket,
	}
}

// NewArchiveWithClient creates an Archive with an injected client.
func NewArchiveWithClient(logger zerolog.Logger, db DB, client ObjectPutter, bucket string) *Archive {
	return &Archive{
		logger: logger.With().Str("component", "audit-archive").Logger(),
		db:     db,
		client: client,
		bucket: bucket,
	}
}

// ArchiveAuditLogsParams holds the parameters for ArchiveAuditLogs.
type ArchiveAuditLogsParams struct {
	Before time.Time `json:"before"`
}

// ArchiveAuditLogsResult reports what one archival run did.
type ArchiveAuditLogsResult struct {
	Archived int    `json:"archived"`
	Key      string `json:"key,omitempty"`
}

// ArchiveAuditLogs uploads all audit entries older than the cutoff as
// one JSON-lines object, then deletes them. The object key embeds the
// cutoff so repeated runs with the same cutoff overwrite rather than
// duplicate.
func (a *Archive) ArchiveAuditLogs(ctx context.Context, params ArchiveAuditLogsParams) (*ArchiveAuditLogsResult, error) {
	rows, err := a.db.Query(ctx,
		`SELECT id, actor, event, tenant_id, detail, created_at
		 FROM audit_logs WHERE created_at < $1 ORDER BY id`,
		params.Before,
	)
	if err != nil {
		return nil, fmt.Errorf("select aged audit logs: %w", err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	var count int
	var lastID int64
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Event, &e.TenantID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("encode audit entry %d: %w", e.ID, err)
		}
		lastID = e.ID
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	if count == 0 {
		return &ArchiveAuditLogsResult{}, nil
	}

	key := fmt.Sprintf("audit/%s.jsonl", params.Before.UTC().Format("2006-01-02T150405Z"))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("upload audit archive %s: %w", key, err)
	}

	// Delete only what was uploaded.
	if _, err := a.db.Exec(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1 AND id <= $2`,
		params.Before, lastID,
	); err != nil {
		return nil, fmt.Errorf("delete archived audit logs: %w", err)
	}

	a.logger.Info().Int("archived", count).Str("key", key).Msg("audit logs archived")
	return &ArchiveAuditLogsResult{Archived: count, Key: key}, nil
}

package rds

import (
	"bytes"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rds"
	"github.com/aws/aws-sdk-go/service/rds/rdsiface"

	"github.com/chmdznr/aurora-log-sync/pkg/models"
)

// initialMarker is the sentinel the portion API expects for "start of
// file".
const initialMarker = "0"

// Client wraps the RDS log file APIs used by the sync engine.
type Client struct {
	api rdsiface.RDSAPI
}

// New builds a client for the given region using the default credential
// chain.
func New(region string) (*Client, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return &Client{api: rds.New(sess)}, nil
}

// NewWithAPI wires an explicit API implementation, used by tests.
func NewWithAPI(api rdsiface.RDSAPI) *Client {
	return &Client{api: api}
}

// ListLogFiles returns every log file the instance currently reports, in
// the order the API yields them.
func (c *Client) ListLogFiles(instanceID string) ([]models.LogFile, error) {
	var files []models.LogFile
	input := &rds.DescribeDBLogFilesInput{
		DBInstanceIdentifier: aws.String(instanceID),
	}
	err := c.api.DescribeDBLogFilesPages(input, func(page *rds.DescribeDBLogFilesOutput, _ bool) bool {
		for _, f := range page.DescribeDBLogFiles {
			files = append(files, models.LogFile{
				Name:        aws.StringValue(f.LogFileName),
				Size:        aws.Int64Value(f.Size),
				LastWritten: aws.Int64Value(f.LastWritten),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list log files for %s: %w", instanceID, err)
	}
	return files, nil
}

// FetchLogFile downloads the full contents of one log file through the
// marker-based portion API. The loop has no iteration bound: the source's
// AdditionalDataPending flag is the only termination condition. A
// transport failure mid-stream aborts the whole file; the caller decides
// what that means for the rest of the instance's run.
func (c *Client) FetchLogFile(instanceID, name string) ([]byte, error) {
	var buf bytes.Buffer
	marker := initialMarker
	for {
		out, err := c.api.DownloadDBLogFilePortion(&rds.DownloadDBLogFilePortionInput{
			DBInstanceIdentifier: aws.String(instanceID),
			LogFileName:          aws.String(name),
			Marker:               aws.String(marker),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to download portion of %s at marker %s: %w", name, marker, err)
		}

		buf.WriteString(aws.StringValue(out.LogFileData))

		if !aws.BoolValue(out.AdditionalDataPending) {
			return buf.Bytes(), nil
		}
		if next := aws.StringValue(out.Marker); next != "" {
			marker = next
		} else {
			marker = initialMarker
		}
	}
}

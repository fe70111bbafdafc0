package transport

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Sample data for the /test/logs generator. Shapes match the ETL
// pipeline's real log records so the UI renders them unchanged.
var (
	testLogMessages = []string{
		"job update response status: FAILURE, response: <Response [200]>",
		"job update response status: SUCCESS, response: <Response [200]>",
		"Publish report status: True, response: Report has been published for pipeline :: {pipeline_id}",
		"Error -> Error  : ETL Error  : ETL stopped due to PRE-CHECK error: Error in DQF Pre-Check check: DQF Pre-Check returned empty status",
		"Executing from the start as changes found in the code",
		"{step}. Running ETL for snowflake",
		"connect to database - snowflake",
		"L5 tag version:{tag} is running",
		"ETL Running",
		"Starting L5 DAP",
		"JSON data is valid",
		"Total time for L5 execution = {duration} seconds",
		"L5 execution ended",
		"L5 (standard) data population ended",
	}

	testLogLevels = []string{"INFO", "ERROR", "WARN", "DEBUG"}
	testLogTypes  = []string{"THIRD_PARTY_LIBRARY", "APPLICATION", "SYSTEM"}
	testStages    = []string{"PLATFORM_INTERNAL", "ETL_PROCESSING", "DATA_VALIDATION", "REPORTING"}

	testPipelineIDs = []string{
		"70ae99a3-9260-4435-b13a-1f3abfc2a77f",
		"85bc12d4-a371-4546-c24b-2g4bcgd3b88g",
		"92cd23e5-b482-5657-d35c-3h5cdhe4c99h",
		"a7de34f6-c593-6768-e46d-4i6deif5da0i",
	}

	testExecIDs = []string{"3920", "3953", "4021", "4087", "4156"}
)

type testLogMeta struct {
	ExecID     string `json:"execID"`
	PipelineID string `json:"pipelineID"`
	Timestamp  int64  `json:"timestamp"`
}

type testLogEntry struct {
	Description string      `json:"description"`
	Duration    string      `json:"duration"`
	ISOTime     string      `json:"isoTime"`
	LogLevel    string      `json:"logLevel"`
	LogType     string      `json:"logType"`
	Message     string      `json:"message"`
	Meta        testLogMeta `json:"meta"`
	StageName   string      `json:"stageName"`
	Time        string      `json:"time"`
}

func pick(values []string) string {
	return values[rand.Intn(len(values))]
}

// synthesizeLogEntry builds one realistic ETL log record as the publish
// payload used when a /test/logs caller omits logData.
func synthesizeLogEntry() json.RawMessage {
	now := time.Now().UTC()
	pipelineID := pick(testPipelineIDs)

	message := pick(testLogMessages)
	switch {
	case strings.Contains(message, "{pipeline_id}"):
		message = strings.ReplaceAll(message, "{pipeline_id}", pipelineID)
	case strings.Contains(message, "{step}"):
		message = strings.ReplaceAll(message, "{step}", fmt.Sprintf("%d", rand.Intn(10)+1))
	case strings.Contains(message, "{tag}"):
		message = strings.ReplaceAll(message, "{tag}", fmt.Sprintf("v%d.%d", rand.Intn(5)+1, rand.Intn(11)))
	case strings.Contains(message, "{duration}"):
		message = strings.ReplaceAll(message, "{duration}", fmt.Sprintf("%.2f", 100+rand.Float64()*2900))
	}

	entry := testLogEntry{
		Description: message,
		Duration:    "0 sec",
		ISOTime:     now.Format("2006-01-02T15:04:05.000000") + "000",
		LogLevel:    pick(testLogLevels),
		LogType:     pick(testLogTypes),
		Message:     message,
		Meta: testLogMeta{
			ExecID:     pick(testExecIDs),
			PipelineID: pipelineID,
			Timestamp:  now.UnixMilli(),
		},
		StageName: pick(testStages),
		Time:      now.Format("Jan 02 2006 at 03:04 PM"),
	}

	data, _ := json.Marshal(entry)
	return data
}

// Package cloud adapts the pipeline's narrow interfaces to AWS services.
//
// BDAClient submits documents to Bedrock Data Automation. S3ArtifactStore
// reads result artifacts. RecordTable and JobTable persist records and
// correlation records in DynamoDB. HumanLoopSink starts SageMaker A2I human
// loops for review. The Lambda helpers translate S3 and EventBridge events
// into the pipeline's event types.
//
// Every adapter depends on a one- or two-method interface rather than the
// full SDK client, so tests substitute hand-written fakes. All SDK errors are
// classified into core.TransientError or core.PermanentError before they are
// returned.
package cloud

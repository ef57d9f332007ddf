package processor

import (
	"path"
	"strings"

	"github.com/google/uuid"

	"videoproc/internal/pkg/errors"
	"videoproc/internal/worker/staging"
)

// JobParser turns object names into a Job.
type JobParser struct {
	processedPrefix string
	isolate         bool
}

func NewJobParser(processedPrefix string, isolateJobs bool) *JobParser {
	return &JobParser{processedPrefix: processedPrefix, isolate: isolateJobs}
}

// Parse builds a job for rawObject. An empty processedObject derives the
// output name by prefixing the raw object's base name.
func (jp *JobParser) Parse(rawObject, processedObject string) (Job, error) {
	rawObject = strings.TrimSpace(rawObject)
	processedObject = strings.TrimSpace(processedObject)
	if rawObject == "" {
		return Job{}, errors.ValidationField("name", "raw object name is required")
	}
	if strings.HasSuffix(rawObject, "/") {
		return Job{}, errors.ValidationField("name", "raw object name must not be a folder").
			WithField("value", rawObject)
	}
	if processedObject == "" {
		processedObject = jp.ProcessedName(rawObject)
	}

	id := uuid.NewString()
	job := Job{
		ID: id,
		Raw: RawVideoRef{
			ObjectName: rawObject,
			LocalName:  jp.localName(id, rawObject),
		},
		Processed: ProcessedVideoRef{
			ObjectName: processedObject,
			LocalName:  jp.localName(id, processedObject),
		},
	}

	for _, name := range []string{job.Raw.LocalName, job.Processed.LocalName} {
		if err := staging.ValidateName(name); err != nil {
			return Job{}, err
		}
	}
	return job, nil
}

// ProcessedName is the default output object for rawObject. The prefix goes
// on the base name so folder-style keys keep their folder.
func (jp *JobParser) ProcessedName(rawObject string) string {
	dir, base := path.Split(rawObject)
	return dir + jp.processedPrefix + base
}

func (jp *JobParser) localName(jobID, object string) string {
	name := SanitizeFilename(path.Base(object))
	if jp.isolate {
		return jobID + "-" + name
	}
	return name
}

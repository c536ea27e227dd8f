package worker

import (
	"io"

	"github.com/odpf/salt/log"
)

// jobLogger tags every line with the fields of the job it was created for.
type jobLogger struct {
	logger log.Logger
	fields []interface{}
}

func newJobLogger(logger log.Logger, fields ...interface{}) log.Logger {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &jobLogger{
		logger: logger,
		fields: fields,
	}
}

func (j *jobLogger) with(args []interface{}) []interface{} {
	all := make([]interface{}, 0, len(j.fields)+len(args))
	all = append(all, j.fields...)
	return append(all, args...)
}

func (j *jobLogger) Debug(msg string, args ...interface{}) {
	j.logger.Debug(msg, j.with(args)...)
}

func (j *jobLogger) Info(msg string, args ...interface{}) {
	j.logger.Info(msg, j.with(args)...)
}

func (j *jobLogger) Warn(msg string, args ...interface{}) {
	j.logger.Warn(msg, j.with(args)...)
}

func (j *jobLogger) Error(msg string, args ...interface{}) {
	j.logger.Error(msg, j.with(args)...)
}

func (j *jobLogger) Fatal(msg string, args ...interface{}) {
	j.logger.Fatal(msg, j.with(args)...)
}

func (j *jobLogger) Level() string {
	return j.logger.Level()
}

func (j *jobLogger) Writer() io.Writer {
	return j.logger.Writer()
}

// FieldArgs flattens fields into the key value arguments of log.Logger.
func FieldArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

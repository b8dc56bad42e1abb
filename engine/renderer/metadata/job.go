package metadata

/** @brief Runs the work of a job and returns its result. */
type JobStart func(input interface{}) (interface{}, error)

/** @brief Invoked with the result of a job that succeeded. */
type JobOnComplete func(result interface{})

/** @brief Invoked with the error of a job that failed. */
type JobOnFailure func(err error)

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	/** @brief Name used when logging failures. */
	Name string
	/** @brief Invoked on a worker when the job starts. Required. */
	OnStart JobStart
	/** @brief Data passed to OnStart. */
	InputParams interface{}
	/** @brief Invoked when OnStart succeeded. Optional. */
	OnComplete JobOnComplete
	/** @brief Invoked when OnStart failed. Optional. */
	OnFailure JobOnFailure
	/** @brief Invoked after either outcome. Optional. */
	OnCompletionCallback func()
}

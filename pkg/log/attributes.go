// Package log defines standard attribute keys for boosting and data
// preparation operations.
//
// These keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") to enable structured log analysis and filtering.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "XGBClassifier", "gbtree"
	ModelNameKey = "model.name"

	// EstimatorIDKey provides a unique identifier for a specific model instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "update", "eval"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// DataSizeKey indicates the size of the data in bytes, humanized.
	DataSizeKey = "data.size"

	// BatchSizeKey indicates the size of an input batch.
	BatchSizeKey = "data.batch_size"
)

// Partition adapter
const (
	// PartitionKey is the 0-based index of a partition in its iterator.
	PartitionKey = "partition.index"

	// PartitionsKey is the number of partitions consumed.
	PartitionsKey = "partition.count"

	// ValidationRowsKey is the number of rows routed to the validation bucket.
	ValidationRowsKey = "partition.validation_rows"

	// PathKey is a file or directory path.
	PathKey = "io.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records a loss or evaluation metric value.
	LossKey = "metrics.loss"

	// MetricKey names the evaluation metric.
	MetricKey = "metrics.name"

	// IterationKey records the boosting round.
	IterationKey = "training.iteration"

	// TreesKey records the number of trees in the ensemble.
	TreesKey = "training.trees"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// LearningRateKey records the shrinkage (eta).
	LearningRateKey = "hyperparams.learning_rate"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute value constants for common operations.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationUpdate  = "update"
	OperationEval    = "eval"
	OperationLoad    = "load"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
)

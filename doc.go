// Package mllite provides gradient boosted trees for Go together with the
// glue that feeds them from partitioned tabular data.
//
// mllite offers an xgboost-like API: a low level booster driven round by
// round with string parameters, and scikit-learn style estimators on top.
//
// # Features
//
//   - Histogram tree growth with L1/L2 regularization, gamma pruning and
//     missing-value default directions
//   - Regression, logistic, poisson and softmax objectives with their
//     evaluation metrics
//   - Evaluation history, callbacks and early stopping
//   - Partition-to-matrix adapter with a validation indicator column
//   - JSON and text tree dumps, feature importance, model persistence
//
// # Installation
//
//	go get github.com/YuminosukeSato/mllite
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/mllite/datasets"
//	    "github.com/YuminosukeSato/mllite/sklearn/xgboost"
//	)
//
//	func main() {
//	    iris, err := datasets.LoadIris()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    clf := xgboost.NewXGBClassifier()
//	    clf.MaxDepth = 3
//	    if err := clf.Fit(iris.X, iris.Y); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    acc, err := clf.Score(iris.X, iris.Y)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("accuracy:", acc)
//	}
//
// # Packages
//
//   - booster: the boosting engine (Booster, Train, callbacks, dumps)
//   - dmatrix: the training matrix, histogram cuts and CSV URIs
//   - partition: partition frames, partition files and the matrix adapter
//   - sklearn/xgboost: XGBClassifier and XGBRegressor
//   - datasets: iris, Friedman #1 and the dense toy buffer
//   - metrics: accuracy, log loss, MSE, RMSE, MAE, R²
//   - core/model: estimator interfaces, fitted state, persistence
//   - core/parallel: parallel processing utilities
//   - pkg/errors, pkg/log: structured errors, warnings and logging
//
// The mllite command (cmd/mllite) runs the smoke harnesses whose printed
// output is compared across versions.
package mllite

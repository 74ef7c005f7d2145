package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbaPredictor はクラス確率を出力できる分類器のインターフェース
type ProbaPredictor interface {
	Predictor
	// PredictProba は各クラスの確率を (サンプル数 x クラス数) の行列で返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// ParamsGetter は scikit-learn の get_params/set_params に相当するインターフェース
type ParamsGetter interface {
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}

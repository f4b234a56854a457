// Package analysis содержит общие для аналитических модулей ошибки
package analysis

import "errors"

var (
	// ErrInsufficientData свечей меньше, чем нужно индикатору или анализу
	ErrInsufficientData = errors.New("недостаточно данных")
	// ErrMalformedSnapshot в снимке стакана нет цены или объема
	ErrMalformedSnapshot = errors.New("некорректный снимок стакана")
	// ErrArithmeticDegenerate деление на ноль или нечисловой результат
	ErrArithmeticDegenerate = errors.New("вырожденный расчет")
)

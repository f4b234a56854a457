// Package signal выбирает направление сделки и оценивает уверенность
package signal

// Reasons накапливает подтверждения и блокирующие причины в порядке проверки
type Reasons struct {
	confirmations []string
	blocking      []string
}

// NewReasons создает пустой набор причин
func NewReasons() *Reasons {
	return &Reasons{
		confirmations: []string{},
		blocking:      []string{},
	}
}

// Confirm добавляет подтверждение
func (r *Reasons) Confirm(reason string) {
	r.confirmations = append(r.confirmations, reason)
}

// Block добавляет блокирующую причину
func (r *Reasons) Block(reason string) {
	r.blocking = append(r.blocking, reason)
}

// Blocked есть ли хотя бы одна блокирующая причина
func (r *Reasons) Blocked() bool {
	return len(r.blocking) > 0
}

// Confirmations копия списка подтверждений
func (r *Reasons) Confirmations() []string {
	return append([]string{}, r.confirmations...)
}

// BlockingReasons копия списка блокирующих причин
func (r *Reasons) BlockingReasons() []string {
	return append([]string{}, r.blocking...)
}

// internal/jobs/sweep.go
package jobs

import (
	"context"
	"log"
	"time"
)

// Sweeper - фоновый авторасчёт: с фиксированным интервалом находит
// выполненные, но не оплаченные заказы старше grace period и прогоняет
// их через общий путь выплаты. Безопасен при гонке с ручным finish:
// проверка paid и ключ идемпотентности перевода исключают двойную
// выплату.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	grace    time.Duration
}

// NewSweeper создает авторасчёт с заданным интервалом и grace period.
func NewSweeper(svc *Service, interval, grace time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, grace: grace}
}

// Run запускает цикл авторасчёта до отмены контекста.
// Вызывается в отдельной горутине.
func (sw *Sweeper) Run(ctx context.Context) {
	log.Printf("Авторасчёт запущен: интервал %s, grace period %s.", sw.interval, sw.grace)
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Авторасчёт остановлен.")
			return
		case <-ticker.C:
			sw.SweepOnce(ctx)
		}
	}
}

// SweepOnce выполняет один проход авторасчёта. Сбой по одному заказу
// логируется и не прерывает обработку остальных.
func (sw *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-sw.grace)
	due, err := sw.svc.jobs.ListUnpaidCompletedBefore(cutoff)
	if err != nil {
		log.Printf("SweepOnce: ошибка выборки заказов к выплате: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("SweepOnce: к авторасчёту %d заказ(ов).", len(due))
	for _, job := range due {
		if _, err := sw.svc.Finish(ctx, job.ID, 0); err != nil {
			log.Printf("SweepOnce: авторасчёт по заказу %d не выполнен: %v", job.ID, err)
			continue
		}
		log.Printf("SweepOnce: заказ %d оплачен авторасчётом.", job.ID)
	}
}

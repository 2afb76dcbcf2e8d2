package risk

import (
	"sync"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// State is the gate's runtime risk state: kill switch, paused strategies,
// running daily P&L and the peak equity watermark. The gate is the single
// writer; the execution path only reads through the gate.
type State struct {
	mu sync.RWMutex

	killSwitch       bool
	killSwitchReason string
	paused           map[string]struct{}
	dailyPnL         decimal.Decimal
	peakEquity       decimal.Decimal
}

func NewState() *State {
	return &State{paused: make(map[string]struct{})}
}

// TripKillSwitch halts all trading until ClearKillSwitch.
func (s *State) TripKillSwitch(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.killSwitch {
		return
	}
	s.killSwitch = true
	s.killSwitchReason = reason
	logger.WithField("reason", reason).Warn("kill switch tripped")
}

func (s *State) ClearKillSwitch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killSwitch = false
	s.killSwitchReason = ""
	logger.Info("kill switch cleared")
}

// KillSwitch returns the halt flag and its reason.
func (s *State) KillSwitch() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.killSwitch, s.killSwitchReason
}

func (s *State) PauseStrategy(strategyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[strategyID] = struct{}{}
}

func (s *State) ResumeStrategy(strategyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paused, strategyID)
}

func (s *State) IsPaused(strategyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paused[strategyID]
	return ok
}

// RecordPnL adds realized P&L to the running daily total.
func (s *State) RecordPnL(delta decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyPnL = s.dailyPnL.Add(delta)
}

// ResetDaily zeroes the daily P&L at the start of a trading day.
func (s *State) ResetDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyPnL = decimal.Zero
}

func (s *State) DailyPnL() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dailyPnL
}

// ObserveEquity advances the peak equity watermark.
func (s *State) ObserveEquity(equity decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if equity.GreaterThan(s.peakEquity) {
		s.peakEquity = equity
	}
}

func (s *State) PeakEquity() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakEquity
}

package repository

import (
	"Sniper/internal/domain/models"
	domrepo "Sniper/internal/domain/repository"
	"Sniper/pkg/config"
)

// ConfigProfiles resolves symbol profiles from static configuration.
// Unknown symbols fall back to the "default" asset class.
type ConfigProfiles struct {
	cfg *config.Config
}

func NewConfigProfiles(cfg *config.Config) domrepo.ProfileSource {
	return &ConfigProfiles{cfg: cfg}
}

func (p *ConfigProfiles) Profile(symbol string) models.SymbolProfile {
	class, ok := p.cfg.Profiles.Symbols[symbol]
	if !ok {
		class = "default"
	}
	return models.SymbolProfile{
		Symbol:         symbol,
		AssetClass:     class,
		MaxSpreadATR:   p.cfg.MaxSpreadATR(symbol),
		RiskMultiplier: p.cfg.RiskMultiplier(symbol),
	}
}

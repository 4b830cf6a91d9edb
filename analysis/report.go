package analysis

import (
	"fmt"
	"math/rand"
)

// infoTypes is the catalog of leaked-information classifications a scan can
// report.
var infoTypes = []string{
	"Correo Electrónico",
	"Número Telefónico",
	"RFC",
	"CURP",
	"Tarjeta de Crédito",
	"Número de Seguro Social",
	"Dirección Personal",
	"Fecha de Nacimiento",
	"Número de Cuenta Bancaria",
	"Contraseña (Hash)",
	"Token de Sesión",
	"IP Privada",
	"Número de Identificación",
	"Código Postal",
	"Nombre Completo",
}

// filePaths is the catalog of locations a detection can point at.
var filePaths = []string{
	"/data/users.json",
	"/payment/transactions.csv",
	"/data/profiles.json",
	"/contacts/list.txt",
	"/fiscal/datos.xml",
	"/personal/info.db",
	"/mailing/subscribers.csv",
	"/auth/credentials.json",
	"/banking/accounts.json",
	"/logs/access.log",
	"/cache/sessions.txt",
	"/records/ids.csv",
	"/locations/addresses.json",
}

// generateReport simulates a scan outcome. The severity tier is drawn
// uniformly; the detection count and per-detection criticality mix follow
// the tier: safe reports carry 0-2 low findings, warnings 3-10 low/medium,
// critical 5-19 skewed toward high criticality.
func generateReport(rng *rand.Rand, analysisID, url string) *Report {
	var severity Severity
	var total int

	switch tier := rng.Float64(); {
	case tier < 0.33:
		severity = SeveritySafe
		total = rng.Intn(3)
	case tier < 0.66:
		severity = SeverityWarning
		total = rng.Intn(8) + 3
	default:
		severity = SeverityCritical
		total = rng.Intn(15) + 5
	}

	detections := make([]Detection, 0, total)
	for i := 0; i < total; i++ {
		detections = append(detections, Detection{
			Number:      i + 1,
			InfoType:    infoTypes[rng.Intn(len(infoTypes))],
			FilePath:    filePaths[rng.Intn(len(filePaths))],
			Location:    fmt.Sprintf("Fila %d, Columna %d", rng.Intn(1000)+1, rng.Intn(50)+1),
			Criticality: detectionCriticality(rng, severity),
		})
	}

	return &Report{
		AnalysisID:      analysisID,
		URL:             url,
		TotalDetections: total,
		Severity:        severity,
		Detections:      detections,
	}
}

func detectionCriticality(rng *rand.Rand, severity Severity) Criticality {
	switch severity {
	case SeveritySafe:
		return CriticalityLow
	case SeverityWarning:
		if rng.Float64() < 0.5 {
			return CriticalityLow
		}
		return CriticalityMedium
	default:
		switch r := rng.Float64(); {
		case r < 0.5:
			return CriticalityHigh
		case r < 0.8:
			return CriticalityMedium
		default:
			return CriticalityLow
		}
	}
}

// Package result implements ResultSerializer: the per-year, per-substance
// output snapshot a Runner collects, with consumption attribution between
// domestic manufacture, import, and recycling displacement (spec §4.7), and
// the CSV export surface downstream tooling expects (spec §6).
package result

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/recalc"
	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

// Columns is the fixed, ordered CSV header spec §6 specifies.
var Columns = []string{
	"scenario", "trial", "year", "application", "substance",
	"manufacture", "import", "recycle", "domesticConsumption", "importConsumption",
	"recycleConsumption", "population", "populationNew", "rechargeEmissions",
	"eolEmissions", "energyConsumption", "initialChargeValue",
	"initialChargeConsumption", "importNewPopulation",
}

// Row is one (scenario, trial, year, application, substance) output record.
// Every value field renders as "<magnitude> <unit>" per spec §6.
type Row struct {
	Scenario    string
	Trial       int
	Year        int
	Application string
	Substance   string

	Manufacture              unit.Value
	Import                   unit.Value
	Recycle                  unit.Value
	DomesticConsumption      unit.Value
	ImportConsumption        unit.Value
	RecycleConsumption       unit.Value
	Population               unit.Value
	PopulationNew            unit.Value
	RechargeEmissions        unit.Value
	EolEmissions             unit.Value
	EnergyConsumption        unit.Value
	InitialChargeValue       unit.Value
	InitialChargeConsumption unit.Value
	ImportNewPopulation      unit.Value
}

// Fields returns the row's values in Columns order, each rendered as a CSV
// cell string.
func (r Row) Fields() []string {
	return []string{
		r.Scenario,
		fmt.Sprintf("%d", r.Trial),
		fmt.Sprintf("%d", r.Year),
		r.Application,
		r.Substance,
		r.Manufacture.String(),
		r.Import.String(),
		r.Recycle.String(),
		r.DomesticConsumption.String(),
		r.ImportConsumption.String(),
		r.RecycleConsumption.String(),
		r.Population.String(),
		r.PopulationNew.String(),
		r.RechargeEmissions.String(),
		r.EolEmissions.String(),
		r.EnergyConsumption.String(),
		r.InitialChargeValue.String(),
		r.InitialChargeConsumption.String(),
		r.ImportNewPopulation.String(),
	}
}

// Serializer builds Rows from a StreamKeeper's current state for a given
// scenario/trial/year, attributing consumption between domestic manufacture
// and import and netting out recycling's displaced volume.
type Serializer struct {
	Keeper *stream.Keeper
}

// New constructs a Serializer reading from keeper.
func New(keeper *stream.Keeper) *Serializer {
	return &Serializer{Keeper: keeper}
}

func safeDiv(n, d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return n.DivRound(d, int32(decimal.DivisionPrecision))
}

// Row builds the result row for key at (scenario, trial, year). It returns
// engineerr.MissingParameter if GHG intensity has never been set for key —
// every other column is derivable, but consumption attribution is
// meaningless without it.
func (s *Serializer) Row(scenario string, trial, year int, key stream.Key) (Row, error) {
	if !s.Keeper.HasGhgIntensity(key) {
		return Row{}, engineerr.New(engineerr.MissingParameter,
			"result serialization for %s/%s requires a GHG intensity to have been set", key.Application, key.Substance)
	}

	kit := recalc.Kit{Keeper: s.Keeper}

	manufactureKg := s.Keeper.GetStream(key, stream.Manufacture).Magnitude
	importKg := s.Keeper.GetStream(key, stream.Import).Magnitude
	recycleKg := s.Keeper.GetStream(key, stream.Recycle).Magnitude
	ghg := s.Keeper.GetGhgIntensity(key).Magnitude
	energy := s.Keeper.GetEnergyIntensity(key).Magnitude
	initialChargeKgPerUnit := kit.InitialChargeKgPerUnit(key)
	population := s.Keeper.GetStream(key, stream.Equipment).Magnitude
	populationNew := s.Keeper.GetStream(key, stream.NewEquipment).Magnitude
	rechargeEmissions := s.Keeper.GetStream(key, stream.RechargeEmissions).Magnitude
	eolEmissions := s.Keeper.GetStream(key, stream.EolEmissions).Magnitude
	energyConsumption := s.Keeper.GetStream(key, stream.Energy).Magnitude

	// Consumption attribution (spec §4.7): domestic+import manufacture,
	// net of recycling's displaced volume, split proportionally between
	// manufacture and import.
	domesticImportKg := manufactureKg.Add(importKg)
	pctManufacture := safeDiv(manufactureKg, domesticImportKg)
	pctImport := safeDiv(importKg, domesticImportKg)

	displacedKg := kit.DisplacedKg(key)
	recycleConsumption := displacedKg.Mul(ghg)

	netConsumption := domesticImportKg.Mul(ghg).Sub(recycleConsumption)
	domesticConsumption := netConsumption.Mul(pctManufacture)
	importConsumption := netConsumption.Mul(pctImport)

	initialChargeConsumption := initialChargeKgPerUnit.Mul(ghg)
	importNewPopulation := populationNew.Mul(pctImport)

	return Row{
		Scenario:                 scenario,
		Trial:                    trial,
		Year:                     year,
		Application:              key.Application,
		Substance:                key.Substance,
		Manufacture:              unit.Value{Magnitude: manufactureKg, Unit: unit.Kg},
		Import:                   unit.Value{Magnitude: importKg, Unit: unit.Kg},
		Recycle:                  unit.Value{Magnitude: recycleKg, Unit: unit.Kg},
		DomesticConsumption:      unit.Value{Magnitude: domesticConsumption, Unit: unit.TCO2e},
		ImportConsumption:        unit.Value{Magnitude: importConsumption, Unit: unit.TCO2e},
		RecycleConsumption:       unit.Value{Magnitude: recycleConsumption, Unit: unit.TCO2e},
		Population:               unit.Value{Magnitude: population, Unit: unit.Units},
		PopulationNew:            unit.Value{Magnitude: populationNew, Unit: unit.Units},
		RechargeEmissions:        unit.Value{Magnitude: rechargeEmissions, Unit: unit.TCO2e},
		EolEmissions:             unit.Value{Magnitude: eolEmissions, Unit: unit.TCO2e},
		EnergyConsumption:        unit.Value{Magnitude: energyConsumption, Unit: unit.Kwh},
		InitialChargeValue:       unit.Value{Magnitude: initialChargeKgPerUnit, Unit: unit.Composite(unit.Kg, unit.Unit1)},
		InitialChargeConsumption: unit.Value{Magnitude: initialChargeConsumption, Unit: unit.Composite(unit.TCO2e, unit.Unit1)},
		ImportNewPopulation:      unit.Value{Magnitude: importNewPopulation, Unit: unit.Units},
	}, nil
}

// WriteCSV renders rows as the transport's CSV body (spec §6): a header
// line followed by one line per row. The "OK\n\n" / "<ErrorKind>: ..."
// status prefix is the transport layer's concern, not this function's.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("result: writing header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.Fields()); err != nil {
			return fmt.Errorf("result: writing row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

package resolve

import (
	"math"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/annuaire"
)

// RecordFromCompany converts a directory entry into a CompanyRecord. Director
// fields are left empty; callers fill them from a DirectorFinder.
func RecordFromCompany(co annuaire.Company) model.CompanyRecord {
	rec := model.CompanyRecord{
		SIREN:           co.SIREN,
		SiegeSIRET:      co.Siege.SIRET,
		Name:            co.Name(),
		LegalForm:       co.NatureJuridique,
		SectorCode:      co.ActivitePrincipale,
		SectorLabel:     model.SectorLabel(co.ActivitePrincipale),
		Category:        co.Categorie,
		CreationDate:    co.DateCreation,
		EmployeeBracket: co.TrancheEffectif,
		Address: model.Address{
			Street:     co.Siege.Adresse,
			PostalCode: co.Siege.CodePostal,
			City:       co.Siege.LibelleCommune,
			Department: co.Siege.Departement,
			Region:     co.Siege.Region,
		},
	}
	if latest, ok := co.LatestFinance(); ok {
		rec.Revenue = toInt64(latest.CA)
		rec.NetResult = toInt64(latest.ResultatNet)
	}
	return rec
}

func toInt64(f *float64) *int64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	v := int64(math.Round(*f))
	return &v
}

package naming

import feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"

// countries maps ISO 3166-1 alpha-2 codes to the country names the CRM
// accepts, per account locale.
var countries = map[feeddomain.Locale]map[string]string{
	feeddomain.LocaleEN: {
		"AT": "Austria",
		"BE": "Belgium",
		"BG": "Bulgaria",
		"CH": "Switzerland",
		"CY": "Cyprus",
		"CZ": "Czech Republic",
		"DE": "Germany",
		"DK": "Denmark",
		"EE": "Estonia",
		"ES": "Spain",
		"FI": "Finland",
		"FR": "France",
		"GB": "United Kingdom",
		"GR": "Greece",
		"HR": "Croatia",
		"HU": "Hungary",
		"IE": "Ireland",
		"IT": "Italy",
		"LT": "Lithuania",
		"LU": "Luxembourg",
		"LV": "Latvia",
		"MD": "Moldova",
		"MT": "Malta",
		"NL": "Netherlands",
		"NO": "Norway",
		"PL": "Poland",
		"PT": "Portugal",
		"RO": "Romania",
		"RS": "Serbia",
		"SE": "Sweden",
		"SI": "Slovenia",
		"SK": "Slovakia",
		"UA": "Ukraine",
		"US": "United States",
		"CA": "Canada",
		"AU": "Australia",
		"CN": "China",
		"JP": "Japan",
		"TR": "Turkey",
		"IL": "Israel",
	},
	feeddomain.LocaleHU: {
		"AT": "Ausztria",
		"BE": "Belgium",
		"BG": "Bulgária",
		"CH": "Svájc",
		"CY": "Ciprus",
		"CZ": "Csehország",
		"DE": "Németország",
		"DK": "Dánia",
		"EE": "Észtország",
		"ES": "Spanyolország",
		"FI": "Finnország",
		"FR": "Franciaország",
		"GB": "Egyesült Királyság",
		"GR": "Görögország",
		"HR": "Horvátország",
		"HU": "Magyarország",
		"IE": "Írország",
		"IT": "Olaszország",
		"LT": "Litvánia",
		"LU": "Luxemburg",
		"LV": "Lettország",
		"MD": "Moldova",
		"MT": "Málta",
		"NL": "Hollandia",
		"NO": "Norvégia",
		"PL": "Lengyelország",
		"PT": "Portugália",
		"RO": "Románia",
		"RS": "Szerbia",
		"SE": "Svédország",
		"SI": "Szlovénia",
		"SK": "Szlovákia",
		"UA": "Ukrajna",
		"US": "Amerikai Egyesült Államok",
		"CA": "Kanada",
		"AU": "Ausztrália",
		"CN": "Kína",
		"JP": "Japán",
		"TR": "Törökország",
		"IL": "Izrael",
	},
	feeddomain.LocaleRO: {
		"AT": "Austria",
		"BE": "Belgia",
		"BG": "Bulgaria",
		"CH": "Elveția",
		"CY": "Cipru",
		"CZ": "Cehia",
		"DE": "Germania",
		"DK": "Danemarca",
		"EE": "Estonia",
		"ES": "Spania",
		"FI": "Finlanda",
		"FR": "Franța",
		"GB": "Regatul Unit",
		"GR": "Grecia",
		"HR": "Croația",
		"HU": "Ungaria",
		"IE": "Irlanda",
		"IT": "Italia",
		"LT": "Lituania",
		"LU": "Luxemburg",
		"LV": "Letonia",
		"MD": "Republica Moldova",
		"MT": "Malta",
		"NL": "Țările de Jos",
		"NO": "Norvegia",
		"PL": "Polonia",
		"PT": "Portugalia",
		"RO": "România",
		"RS": "Serbia",
		"SE": "Suedia",
		"SI": "Slovenia",
		"SK": "Slovacia",
		"UA": "Ucraina",
		"US": "Statele Unite ale Americii",
		"CA": "Canada",
		"AU": "Australia",
		"CN": "China",
		"JP": "Japonia",
		"TR": "Turcia",
		"IL": "Israel",
	},
}

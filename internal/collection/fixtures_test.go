package collection

const (
	kmlPrefix = `<?xml version="1.0" encoding="UTF-8"?><kml xmlns="http://www.opengis.net/kml/2.2">`

	placemarkOne   = `<Placemark><name>Lightning Strike</name><description>Time:2020-07-01T03:06:46.589Z, Current:-15.2kA, Type:GROUND</description><ExtendedData><Data name="date_time"><value>2020-07-01T03:06:46.589Z</value></Data><Data name="kA"><value>-15.2</value></Data><Data name="strike_type"><value>GROUND</value></Data><Data name="source"><value>toa</value></Data></ExtendedData><Point><coordinates>-98.274532,40.896946</coordinates></Point></Placemark>`
	placemarkTwo   = `<Placemark><name>Lightning Strike</name><description>Time:2020-07-01T03:06:46.703Z, Current:-21.2kA, Type:GROUND</description><ExtendedData><Data name="date_time"><value>2020-07-01T03:06:46.703Z</value></Data><Data name="kA"><value>-21.2</value></Data><Data name="strike_type"><value>GROUND</value></Data><Data name="source"><value>toa</value></Data></ExtendedData><Point><coordinates>-76.992327,32.189369</coordinates></Point></Placemark>`
	placemarkThree = `<Placemark><name>Lightning Strike</name><description>Time:2020-07-01T03:06:46.921Z, Current:-28kA, Type:GROUND</description><ExtendedData><Data name="date_time"><value>2020-07-01T03:06:46.921Z</value></Data><Data name="kA"><value>-28</value></Data><Data name="strike_type"><value>GROUND</value></Data><Data name="source"><value>toa</value></Data></ExtendedData><Point><coordinates>-76.895099,32.195193</coordinates></Point></Placemark>`

	kmlOne   = kmlPrefix + `<Document>` + placemarkOne + `</Document></kml>`
	kmlTwo   = kmlPrefix + `<Document>` + placemarkTwo + `</Document></kml>`
	kmlThree = kmlPrefix + `<Document>` + placemarkThree + `</Document></kml>`
	kmlEmpty = kmlPrefix + `<Document/></kml>`

	csvHeader   = "longitude,latitude,date_time,kA,strike_type,source,unix_time,GDOP,ellipse_bearing,ellipse_major_axis,ellipse_minor_axis"
	csvRowOne   = "105.911369,3.79772,2020-06-20T00:00:00.323Z,-13.6,GROUND,toa,1592611200.323,1,-12,0.25,0.25"
	csvRowTwo   = "105.8,3.8,2020-06-20T00:00:01.100Z,-9.1,CLOUD,toa,1592611201.1,2,40,0.5,0.25"
	csvRowThree = "106.2,3.6,2020-06-20T00:00:02.250Z,12.4,GROUND,toa,1592611202.25,1,-3,0.25,0.25"

	csvOne   = csvHeader + "\n" + csvRowOne
	csvTwo   = csvHeader + "\n" + csvRowTwo
	csvThree = csvHeader + "\n" + csvRowThree
	csvEmpty = csvHeader

	geoFeatureOne   = `{"type":"Feature","id":"InRvYTE1OTI2MTEyMDAzMjMtMTMuNkdST1VORDEwNS45MTEzNjkzLjc5NzcyIg==","geometry":{"type":"Point","coordinates":[105.911369,3.79772]},"properties":{"dateTime":"2020-06-20T00:00:00.323Z","source":"toa","strike_type":"GROUND","kA":-13.6,"GDOP":1}}`
	geoFeatureTwo   = `{"type":"Feature","id":"InRvYTE1OTI2MTEyMDExMDAtOS4xQ0xPVUQxMDUuODMuOCI=","geometry":{"type":"Point","coordinates":[105.8,3.8]},"properties":{"dateTime":"2020-06-20T00:00:01.100Z","source":"toa","strike_type":"CLOUD","kA":-9.1,"GDOP":2}}`
	geoFeatureThree = `{"type":"Feature","id":"InRvYTE1OTI2MTEyMDIyNTAxMi40R1JPVU5EMTA2LjIzLjYi","geometry":{"type":"Point","coordinates":[106.2,3.6]},"properties":{"dateTime":"2020-06-20T00:00:02.250Z","source":"toa","strike_type":"GROUND","kA":12.4,"GDOP":1}}`

	geoOne   = `{"type":"FeatureCollection","features":[` + geoFeatureOne + `],"bbox":[0,0,180,45]}`
	geoTwo   = `{"type":"FeatureCollection","features":[` + geoFeatureTwo + `],"bbox":[10,10,20,20]}`
	geoThree = `{"type":"FeatureCollection","features":[` + geoFeatureThree + `],"bbox":[10,10,20,20]}`
	geoEmpty = `{"type":"FeatureCollection","features":[]}`

	blitzenV3One = `{"amplitude":-13.6,"direction":"GROUND","latitude":3.79772,"longitude":105.911369,"timeMillis":1592611200323,"dateTime":"2020-06-20T00:00:00.323Z","ellipse":{"bearing":-12,"major":0.25,"minor":0.25},"nanosecondsRemainder":0,"sensorDetails":{"chiSquared":0,"reportingSensors":0,"degreesFreedom":0,"rangeNormalizedSignal":0,"sensorInformation":"","riseTime":0,"peakTime":0}}`
	blitzenV3Two = `{"amplitude":-9.1,"direction":"CLOUD","latitude":3.8,"longitude":105.8,"timeMillis":1592611201100,"dateTime":"2020-06-20T00:00:01.100Z","ellipse":{"bearing":40,"major":0.5,"minor":0.25},"nanosecondsRemainder":12,"sensorDetails":{"chiSquared":1.5,"reportingSensors":6,"degreesFreedom":4,"rangeNormalizedSignal":2,"sensorInformation":"","riseTime":3,"peakTime":5}}`
	blitzenV1One = `{"current":-13.6,"direction":"GROUND","latitude":3.79772,"longitude":105.911369,"timeMillis":1592611200323}`
	blitzenV1Two = `{"current":-9.1,"direction":"CLOUD","latitude":3.8,"longitude":105.8,"timeMillis":1592611201100}`
)
